package publisher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

var (
	mu                   sync.RWMutex
	registeredPublishers = make(map[string]publisher)
	lastStates           sync.Map
)

type publisher interface {
	// RegisterDevice announces a device to the downstream system once.
	RegisterDevice(ctx context.Context, device model.Device) error
	// PublishChange delivers one confirmed state change.
	PublishChange(ctx context.Context, change model.StateChange) error
}

func Register(name string, p publisher) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registeredPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registeredPublishers[name] = p
	return nil
}

// RegisterDevice fans a device announcement out to every publisher. A
// failing publisher is logged and skipped; one broken downstream must not
// block the others.
func RegisterDevice(ctx context.Context, device model.Device) {
	mu.RLock()
	defer mu.RUnlock()
	for name, p := range registeredPublishers {
		if err := p.RegisterDevice(ctx, device); err != nil {
			zap.L().Error("failed to register device",
				zap.Error(err), zap.String("publisher", name), zap.String("device", device.Key()))
			continue
		}
		zap.L().Debug("registered device",
			zap.String("device", device.Key()), zap.String("publisher", name))
	}
}

// PublishChange fans one state change out to every publisher. Changes that
// repeat the last published state for a key are suppressed.
func PublishChange(ctx context.Context, change model.StateChange) {
	if !shouldPublish(change) {
		return
	}
	mu.RLock()
	defer mu.RUnlock()
	for name, p := range registeredPublishers {
		if err := p.PublishChange(ctx, change); err != nil {
			zap.L().Error("failed to publish state change",
				zap.Error(err), zap.String("publisher", name), zap.String("device", change.Key))
			continue
		}
	}
}

func shouldPublish(change model.StateChange) bool {
	previous, exists := lastStates.Load(change.Key)
	if exists && previous == change.State {
		return false
	}
	lastStates.Store(change.Key, change.State)
	return true
}
