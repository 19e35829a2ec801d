package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

type recordingPublisher struct {
	devices []model.Device
	changes []model.StateChange
	err     error
}

func (p *recordingPublisher) RegisterDevice(_ context.Context, device model.Device) error {
	if p.err != nil {
		return p.err
	}
	p.devices = append(p.devices, device)
	return nil
}

func (p *recordingPublisher) PublishChange(_ context.Context, change model.StateChange) error {
	if p.err != nil {
		return p.err
	}
	p.changes = append(p.changes, change)
	return nil
}

func reset() {
	mu.Lock()
	registeredPublishers = make(map[string]publisher)
	mu.Unlock()
	lastStates.Range(func(key, _ any) bool {
		lastStates.Delete(key)
		return true
	})
}

func change(key string, on bool) model.StateChange {
	return model.StateChange{
		Key:       key,
		Type:      model.DeviceTypeLight,
		State:     model.OnOff{On: on},
		Timestamp: time.Now(),
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	reset()
	require.NoError(t, Register("mqtt", &recordingPublisher{}))
	assert.ErrorIs(t, Register("mqtt", &recordingPublisher{}), errAlreadyRegistered)
}

func TestPublishChangeFansOut(t *testing.T) {
	reset()
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	require.NoError(t, Register("first", first))
	require.NoError(t, Register("second", second))

	PublishChange(context.Background(), change("Single_1_page02", true))

	require.Len(t, first.changes, 1)
	require.Len(t, second.changes, 1)
	assert.Equal(t, "Single_1_page02", first.changes[0].Key)
}

func TestPublishChangeSuppressesRepeats(t *testing.T) {
	reset()
	p := &recordingPublisher{}
	require.NoError(t, Register("only", p))

	PublishChange(context.Background(), change("Single_1_page02", true))
	PublishChange(context.Background(), change("Single_1_page02", true))
	PublishChange(context.Background(), change("Single_1_page02", false))

	assert.Len(t, p.changes, 2)
}

func TestFailingPublisherDoesNotBlockOthers(t *testing.T) {
	reset()
	broken := &recordingPublisher{err: errors.New("broker down")}
	healthy := &recordingPublisher{}
	require.NoError(t, Register("broken", broken))
	require.NoError(t, Register("healthy", healthy))

	device := model.NewDevice(model.Descriptor{ID: "Single_1", Page: "02", Type: model.DeviceTypeLight})
	RegisterDevice(context.Background(), device)
	PublishChange(context.Background(), change("Single_1_page02", true))

	assert.Len(t, healthy.devices, 1)
	assert.Len(t, healthy.changes, 1)
}
