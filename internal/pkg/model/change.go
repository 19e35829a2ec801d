package model

import (
	"encoding/json"
	"time"
)

// StateChange records one confirmed state mutation. Changes are emitted by
// the state manager only after the backend acknowledged the command, so a
// change stream never contains speculative state.
type StateChange struct {
	Key       string      `json:"key"`
	Name      string      `json:"name"`
	Type      DeviceType  `json:"device_type"`
	State     DeviceState `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}

func (c *StateChange) UnmarshalJSON(data []byte) error {
	type alias StateChange
	aux := struct {
		State json.RawMessage `json:"state"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.State) == 0 {
		return nil
	}
	state, err := UnmarshalState(aux.State)
	if err != nil {
		return err
	}
	c.State = state
	return nil
}
