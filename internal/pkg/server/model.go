package server

type TogglePayload struct {
	On bool `json:"on"` // desired power state.
}

type PositionPayload struct {
	Position int `json:"position"` // 0 closed, 100 open.
}
