package server

import (
	"context"
	"encoding/json"

	"github.com/anicoll/knx-integration/internal/pkg/model"
	"github.com/anicoll/knx-integration/pkg/sockets"
)

// StatePusher forwards device events to websocket clients as JSON frames.
type StatePusher struct {
	hub *sockets.Hub
}

func NewStatePusher(hub *sockets.Hub) *StatePusher {
	return &StatePusher{hub: hub}
}

func (p *StatePusher) Hub() *sockets.Hub {
	return p.hub
}

func (p *StatePusher) RegisterDevice(_ context.Context, device model.Device) error {
	frame, err := json.Marshal(struct {
		Event  string       `json:"event"`
		Device model.Device `json:"device"`
	}{Event: "device_registered", Device: device})
	if err != nil {
		return err
	}
	return p.hub.Broadcast(frame)
}

func (p *StatePusher) PublishChange(_ context.Context, change model.StateChange) error {
	frame, err := json.Marshal(struct {
		Event  string            `json:"event"`
		Change model.StateChange `json:"change"`
	}{Event: "state_changed", Change: change})
	if err != nil {
		return err
	}
	return p.hub.Broadcast(frame)
}
