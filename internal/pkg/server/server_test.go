package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/knx-integration/internal/pkg/knx"
	"github.com/anicoll/knx-integration/internal/pkg/model"
	"github.com/anicoll/knx-integration/internal/pkg/state"
	"github.com/anicoll/knx-integration/pkg/hasher"
)

type fakeStates struct {
	devices     map[string]model.Device
	toggleErr   error
	positionErr error
	toggled     []string
	positions   []int
}

func (f *fakeStates) GetDevice(key string) (model.Device, bool) {
	d, ok := f.devices[key]
	return d, ok
}

func (f *fakeStates) ListDevices() []model.Device {
	out := make([]model.Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out
}

func (f *fakeStates) Toggle(_ context.Context, key string, _ bool) error {
	if f.toggleErr != nil {
		return f.toggleErr
	}
	f.toggled = append(f.toggled, key)
	return nil
}

func (f *fakeStates) SetCoverPosition(_ context.Context, _ string, position int) error {
	if f.positionErr != nil {
		return f.positionErr
	}
	f.positions = append(f.positions, position)
	return nil
}

type fakeHistory struct {
	changes []model.StateChange
	from    *time.Time
	to      *time.Time
	err     error
}

func (f *fakeHistory) GetStateHistory(_ context.Context, _ string, from, to *time.Time) ([]model.StateChange, error) {
	f.from, f.to = from, to
	return f.changes, f.err
}

func newTestServer(states *fakeStates, history *fakeHistory, tokenHash string) *httptest.Server {
	var hr historyReader
	if history != nil {
		hr = history
	}
	return httptest.NewServer(New(states, hr, nil).Router(tokenHash))
}

func lightDevice() model.Device {
	return model.NewDevice(model.Descriptor{ID: "Single_1", Name: "Deckenlicht", Page: "02", Index: "3", Type: model.DeviceTypeLight})
}

func TestGetDevices(t *testing.T) {
	states := &fakeStates{devices: map[string]model.Device{"Single_1_page02": lightDevice()}}
	srv := newTestServer(states, nil, "")
	defer srv.Close()

	res, err := http.Get(srv.URL + "/devices")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
}

func TestGetDeviceNotFound(t *testing.T) {
	srv := newTestServer(&fakeStates{devices: map[string]model.Device{}}, nil, "")
	defer srv.Close()

	res, err := http.Get(srv.URL + "/device/Missing_1_page01")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPostToggle(t *testing.T) {
	states := &fakeStates{devices: map[string]model.Device{"Single_1_page02": lightDevice()}}
	srv := newTestServer(states, nil, "")
	defer srv.Close()

	res, err := http.Post(srv.URL+"/device/Single_1_page02/toggle", "application/json", strings.NewReader(`{"on":true}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"Single_1_page02"}, states.toggled)
}

func TestPostToggleErrorMapping(t *testing.T) {
	tests := map[string]struct {
		err    error
		status int
	}{
		"unknown device":   {err: state.ErrDeviceNotFound, status: http.StatusNotFound},
		"no mapping":       {err: fmt.Errorf("toggle: %w", state.ErrNoCommandMapping), status: http.StatusUnprocessableEntity},
		"auth failed":      {err: knx.ErrAuthenticationFailed, status: http.StatusBadGateway},
		"dispatch failed":  {err: knx.ErrRequestFailed, status: http.StatusInternalServerError},
		"invalid position": {err: state.ErrInvalidPosition, status: http.StatusBadRequest},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(&fakeStates{toggleErr: tt.err}, nil, "")
			defer srv.Close()

			res, err := http.Post(srv.URL+"/device/Single_1_page02/toggle", "application/json", strings.NewReader(`{"on":true}`))
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, tt.status, res.StatusCode)
		})
	}
}

func TestPostToggleBadPayload(t *testing.T) {
	srv := newTestServer(&fakeStates{}, nil, "")
	defer srv.Close()

	res, err := http.Post(srv.URL+"/device/Single_1_page02/toggle", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPostPosition(t *testing.T) {
	states := &fakeStates{}
	srv := newTestServer(states, nil, "")
	defer srv.Close()

	res, err := http.Post(srv.URL+"/device/Shifter_1_page01/position", "application/json", strings.NewReader(`{"position":42}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []int{42}, states.positions)
}

func TestGetDeviceHistory(t *testing.T) {
	history := &fakeHistory{changes: []model.StateChange{{
		Key:       "Single_1_page02",
		Name:      "Deckenlicht",
		Type:      model.DeviceTypeLight,
		State:     model.OnOff{On: true},
		Timestamp: time.Now(),
	}}}
	srv := newTestServer(&fakeStates{}, history, "")
	defer srv.Close()

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	res, err := http.Get(srv.URL + "/device/Single_1_page02/history?from=" + from)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.NotNil(t, history.from)
	assert.Nil(t, history.to)
}

func TestGetDeviceHistoryBadTimestamp(t *testing.T) {
	srv := newTestServer(&fakeStates{}, &fakeHistory{}, "")
	defer srv.Close()

	res, err := http.Get(srv.URL + "/device/Single_1_page02/history?from=yesterday")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetDeviceHistoryDisabled(t *testing.T) {
	srv := newTestServer(&fakeStates{}, nil, "")
	defer srv.Close()

	res, err := http.Get(srv.URL + "/device/Single_1_page02/history")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := hasher.HashPassword([]byte("secret-token"))
	require.NoError(t, err)

	states := &fakeStates{devices: map[string]model.Device{}}
	srv := newTestServer(states, nil, hash)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/devices")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/devices", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-token")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// Probes stay unauthenticated.
	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
