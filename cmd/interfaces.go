package cmd

import (
	"context"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// SessionService is what serve expects from the authenticated transport.
type SessionService interface {
	Reauthenticate(ctx context.Context) error
	ValidateSession(ctx context.Context) (bool, error)
}

// StateService is the device surface exposed over HTTP.
type StateService interface {
	GetDevice(key string) (model.Device, bool)
	ListDevices() []model.Device
	Toggle(ctx context.Context, key string, desired bool) error
	SetCoverPosition(ctx context.Context, key string, position int) error
}
