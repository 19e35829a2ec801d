package cmd

import (
	"context"
	"errors"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// MockSessionService is a mock implementation of the SessionService interface.
type MockSessionService struct {
	ReauthenticateFunc  func(ctx context.Context) error
	ValidateSessionFunc func(ctx context.Context) (bool, error)
}

func (m *MockSessionService) Reauthenticate(ctx context.Context) error {
	if m.ReauthenticateFunc != nil {
		return m.ReauthenticateFunc(ctx)
	}
	return nil
}

func (m *MockSessionService) ValidateSession(ctx context.Context) (bool, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx)
	}
	return true, nil
}

// MockStateService is a mock implementation of the StateService interface.
type MockStateService struct {
	GetDeviceFunc        func(key string) (model.Device, bool)
	ListDevicesFunc      func() []model.Device
	ToggleFunc           func(ctx context.Context, key string, desired bool) error
	SetCoverPositionFunc func(ctx context.Context, key string, position int) error
}

func (m *MockStateService) GetDevice(key string) (model.Device, bool) {
	if m.GetDeviceFunc != nil {
		return m.GetDeviceFunc(key)
	}
	return model.Device{}, false
}

func (m *MockStateService) ListDevices() []model.Device {
	if m.ListDevicesFunc != nil {
		return m.ListDevicesFunc()
	}
	return nil
}

func (m *MockStateService) Toggle(ctx context.Context, key string, desired bool) error {
	if m.ToggleFunc != nil {
		return m.ToggleFunc(ctx, key, desired)
	}
	return errors.New("mocked Toggle not implemented")
}

func (m *MockStateService) SetCoverPosition(ctx context.Context, key string, position int) error {
	if m.SetCoverPositionFunc != nil {
		return m.SetCoverPositionFunc(ctx, key, position)
	}
	return errors.New("mocked SetCoverPosition not implemented")
}
