package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/knx-integration/internal/pkg/mapper"
	"github.com/anicoll/knx-integration/internal/pkg/model"
	"github.com/anicoll/knx-integration/internal/pkg/publisher"
	"github.com/anicoll/knx-integration/internal/pkg/registry"
)

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrNoCommandMapping = errors.New("no command mapping for device")
	ErrInvalidPosition  = errors.New("position must be between 0 and 100")
)

type dispatcher interface {
	SendCommand(ctx context.Context, command string) error
}

type discoverer interface {
	DiscoverDevices(ctx context.Context) ([]model.Descriptor, error)
}

// Manager composes the registry, the command table and the transport into
// the bridge's control semantics. Cached state is mutated strictly after a
// confirmed dispatch, never on an error path, so the registry can only
// drift towards the backend, not away from it.
type Manager struct {
	registry *registry.Registry
	mapper   *mapper.CommandMapper
	dispatch dispatcher
	logger   *zap.Logger

	// keys serializes control calls per device so two concurrent toggles on
	// the same key resolve in a defined order.
	keys keyedMutex
}

func New(reg *registry.Registry, cm *mapper.CommandMapper, dispatch dispatcher) *Manager {
	return &Manager{
		registry: reg,
		mapper:   cm,
		dispatch: dispatch,
		logger:   zap.L(),
	}
}

// Initialize populates the registry from one discovery run. Discovery runs
// to completion before the first registry write, so a failed discovery
// leaves the registry untouched.
func (m *Manager) Initialize(ctx context.Context, disc discoverer) error {
	descriptors, err := disc.DiscoverDevices(ctx)
	if err != nil {
		return fmt.Errorf("initialization: %w", err)
	}

	for _, descriptor := range descriptors {
		device := model.NewDevice(descriptor)
		m.registry.Add(device)
		publisher.RegisterDevice(ctx, device)
		m.logger.Info("registered device",
			zap.String("name", device.Name),
			zap.String("key", device.Key()),
			zap.String("type", device.Type.String()))
	}

	if unmapped := m.UnmappedDevices(); len(unmapped) > 0 {
		m.logger.Warn("discovered devices without command mapping",
			zap.Strings("keys", unmapped))
	}

	m.logger.Info("state manager initialized", zap.Int("devices", m.registry.Count()))
	return nil
}

// UnmappedDevices lists registered devices the command table does not know.
// Such devices are visible over the API but every control call on them
// fails with ErrNoCommandMapping, which usually means the mapping file is
// out of date.
func (m *Manager) UnmappedDevices() []string {
	mapped := make(map[string]struct{}, m.mapper.Len())
	for _, key := range m.mapper.Keys() {
		mapped[key] = struct{}{}
	}

	keys := []string{}
	for _, device := range m.registry.All() {
		key := device.Key()
		if _, ok := mapped[key]; ok {
			continue
		}
		// coverings map their pulse commands under suffixed keys
		if _, ok := mapped[key+"_up"]; ok {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// RestoreStates replays persisted state changes into the registry, typically
// the latest row per device from the history store. Changes for unknown keys
// or with a drifted device type are skipped; discovery stays the source of
// truth for which devices exist.
func (m *Manager) RestoreStates(changes []model.StateChange) int {
	restored := 0
	for _, change := range changes {
		device, ok := m.registry.Get(change.Key)
		if !ok || device.Type != change.Type || change.State == nil {
			continue
		}
		m.registry.Update(change.Key, func(d *model.Device) {
			d.State = change.State
		})
		restored++
	}
	if restored > 0 {
		m.logger.Info("restored device states from history", zap.Int("count", restored))
	}
	return restored
}

func (m *Manager) GetDevice(key string) (model.Device, bool) {
	return m.registry.Get(key)
}

func (m *Manager) ListDevices() []model.Device {
	return m.registry.All()
}

// Toggle drives a device to the desired on/off state. Already being there
// is a no-op success: nothing is dispatched and no state is touched.
func (m *Manager) Toggle(ctx context.Context, key string, desired bool) error {
	unlock := m.keys.lock(key)
	defer unlock()

	device, ok := m.registry.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}

	if device.IsOn() == desired {
		m.logger.Debug("device already in desired state",
			zap.String("key", key), zap.Bool("on", desired))
		return nil
	}

	command, ok := m.mapper.GetCommand(device.ID, device.Page)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCommandMapping, key)
	}

	m.logger.Info("toggling device",
		zap.String("key", key),
		zap.Bool("from", device.IsOn()),
		zap.Bool("to", desired))

	// the registry lock is never held across this call
	if err := m.dispatch.SendCommand(ctx, command); err != nil {
		return fmt.Errorf("toggling %s: %w", key, err)
	}

	m.registry.Update(key, func(d *model.Device) {
		d.SetOn(desired)
	})
	m.publish(ctx, key)
	return nil
}

// SetCoverPosition drives a covering towards position using the three pulse
// commands the backend offers: <=10 closes, >=90 opens, anything between
// stops. The cached position records the requested value, not a measurement.
func (m *Manager) SetCoverPosition(ctx context.Context, key string, position int) error {
	if position < 0 || position > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}

	unlock := m.keys.lock(key)
	defer unlock()

	device, ok := m.registry.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}

	commands, ok := m.mapper.GetCoverCommands(device.ID, device.Page)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCommandMapping, key)
	}

	var command string
	var motion model.CoverMotion
	switch {
	case position <= 10:
		command, motion = commands.Down, model.MotionClosing
	case position >= 90:
		command, motion = commands.Up, model.MotionOpening
	default:
		command, motion = commands.Stop, model.MotionStopped
	}

	m.logger.Info("setting cover position",
		zap.String("key", key),
		zap.Int("position", position),
		zap.String("motion", string(motion)))

	if err := m.dispatch.SendCommand(ctx, command); err != nil {
		return fmt.Errorf("moving cover %s: %w", key, err)
	}

	m.registry.Update(key, func(d *model.Device) {
		d.State = model.WindowCovering{Position: uint8(position), Motion: motion}
	})
	m.publish(ctx, key)
	return nil
}

func (m *Manager) publish(ctx context.Context, key string) {
	device, ok := m.registry.Get(key)
	if !ok {
		return
	}
	publisher.PublishChange(ctx, model.StateChange{
		Key:       device.Key(),
		Name:      device.Name,
		Type:      device.Type,
		State:     device.State,
		Timestamp: time.Now(),
	})
}
