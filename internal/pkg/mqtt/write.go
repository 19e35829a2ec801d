package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

var (
	configuredMu      sync.Mutex
	configuredDevices = make(map[string]struct{})
)

// RegisterDevice announces a device to Home Assistant via MQTT discovery.
// Repeated announcements for the same device are skipped.
func (s *service) RegisterDevice(_ context.Context, device model.Device) error {
	key := device.Key()
	configuredMu.Lock()
	if _, exists := configuredDevices[key]; exists {
		configuredMu.Unlock()
		return nil
	}
	configuredMu.Unlock()

	slugIdentifier := identifier(key)
	topic := fmt.Sprintf("homeassistant/%s/%s/config", component(device.Type), slugIdentifier)

	payload, err := json.Marshal(registerMessage(device, slugIdentifier))
	if err != nil {
		return err
	}
	token := s.client.Publish(topic, 1, true, payload)
	if err := token.Error(); err != nil {
		return err
	}
	if res := token.WaitTimeout(time.Second * 5); res {
		configuredMu.Lock()
		configuredDevices[key] = struct{}{}
		configuredMu.Unlock()
	}
	return nil
}

// PublishChange pushes the tagged state envelope onto the device's state
// topic so subscribers learn the confirmed state.
func (s *service) PublishChange(_ context.Context, change model.StateChange) error {
	topic := fmt.Sprintf("homeassistant/%s/%s/state", component(change.Type), identifier(change.Key))

	payload, err := json.Marshal(change.State)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, 0, false, payload)
	res := token.WaitTimeout(time.Second * 10)
	if res {
		return nil
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

func registerMessage(device model.Device, slugIdentifier string) model.RegisterMessage {
	return model.RegisterMessage{
		Tilda:      fmt.Sprintf("homeassistant/%s/%s", component(device.Type), slugIdentifier),
		Name:       device.Name,
		ID:         slugIdentifier,
		StateTopic: "~/state",
		Device: model.RegisterDevice{
			Name:         device.Name,
			Identifiers:  []string{slugIdentifier},
			Model:        device.Type.String(),
			Manufacturer: "KNX Visu",
		},
	}
}
