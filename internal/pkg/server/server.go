package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/anicoll/knx-integration/internal/pkg/knx"
	"github.com/anicoll/knx-integration/internal/pkg/model"
	"github.com/anicoll/knx-integration/internal/pkg/state"
)

type stateService interface {
	GetDevice(key string) (model.Device, bool)
	ListDevices() []model.Device
	Toggle(ctx context.Context, key string, desired bool) error
	SetCoverPosition(ctx context.Context, key string, position int) error
}

type historyReader interface {
	GetStateHistory(ctx context.Context, key string, from, to *time.Time) ([]model.StateChange, error)
}

type server struct {
	states  stateService
	history historyReader
	stream  http.Handler
	logger  *zap.Logger
}

// New builds the REST surface. history and stream are optional; the
// matching routes return 404 when they are nil.
func New(states stateService, history historyReader, stream http.Handler) *server {
	return &server{
		states:  states,
		history: history,
		stream:  stream,
		logger:  zap.L(),
	}
}

// Router wires every route behind the shared middleware chain. tokenHash is
// the bcrypt hash bearer tokens are checked against, empty disables auth.
func (s *server) Router(tokenHash string) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(AuthMiddleware(tokenHash))

	r.HandleFunc("/healthz", s.GetHealth).Methods(http.MethodGet)
	r.HandleFunc("/devices", s.GetDevices).Methods(http.MethodGet)
	r.HandleFunc("/device/{key}", s.GetDevice).Methods(http.MethodGet)
	r.HandleFunc("/device/{key}/state", s.GetDeviceState).Methods(http.MethodGet)
	r.HandleFunc("/device/{key}/toggle", s.PostToggle).Methods(http.MethodPost)
	r.HandleFunc("/device/{key}/position", s.PostPosition).Methods(http.MethodPost)
	if s.history != nil {
		r.HandleFunc("/device/{key}/history", s.GetDeviceHistory).Methods(http.MethodGet)
	}
	if s.stream != nil {
		r.Handle("/ws", s.stream).Methods(http.MethodGet)
	}
	return r
}

func (s *server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) GetDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.states.ListDevices())
}

func (s *server) GetDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.states.GetDevice(mux.Vars(r)["key"])
	if !ok {
		handleError(w, state.ErrDeviceNotFound)
		return
	}
	writeJSON(w, device)
}

func (s *server) GetDeviceState(w http.ResponseWriter, r *http.Request) {
	device, ok := s.states.GetDevice(mux.Vars(r)["key"])
	if !ok {
		handleError(w, state.ErrDeviceNotFound)
		return
	}
	writeJSON(w, device.State)
}

func (s *server) PostToggle(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	req, err := unmarshalPayload[TogglePayload](r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := s.states.Toggle(r.Context(), key, req.On); err != nil {
		handleError(w, err)
		return
	}
	s.logger.Info("device toggled", zap.String("key", key), zap.Bool("on", req.On))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) PostPosition(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	req, err := unmarshalPayload[PositionPayload](r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := s.states.SetCoverPosition(r.Context(), key, req.Position); err != nil {
		handleError(w, err)
		return
	}
	s.logger.Info("cover position set", zap.String("key", key), zap.Int("position", req.Position))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) GetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		handleError(w, err)
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		handleError(w, err)
		return
	}

	changes, err := s.history.GetStateHistory(r.Context(), key, from, to)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, changes)
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errBadTimestamp
	}
	return &t, nil
}

var (
	errBadTimestamp = errors.New("timestamps must be RFC3339")
	errBadPayload   = errors.New("malformed request payload")
)

func handleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrDeviceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, state.ErrNoCommandMapping):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, state.ErrInvalidPosition), errors.Is(err, errBadTimestamp), errors.Is(err, errBadPayload):
		status = http.StatusBadRequest
	case errors.Is(err, knx.ErrAuthenticationFailed):
		status = http.StatusBadGateway
	}
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errBadPayload
	}
	return &out, nil
}
