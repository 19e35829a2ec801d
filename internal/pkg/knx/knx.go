package knx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/anicoll/knx-integration/internal/pkg/config"
)

var (
	// ErrUnauthorized is the backend rejecting the current session token.
	// It is transient: the transport retries exactly once after a refresh.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuthenticationFailed is fatal: re-authentication itself failed, or
	// the backend rejected a freshly refreshed token.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrRequestFailed is a backend response outside 2xx/401.
	ErrRequestFailed = errors.New("request failed")
)

// LoginFunc performs the interactive vendor login and returns a fresh
// session token. Implemented by the browser package; injected here so the
// transport never depends on how the token is obtained.
type LoginFunc func(ctx context.Context) (string, error)

type service struct {
	cfg    *config.KnxConfig
	client *http.Client
	login  LoginFunc
	logger *zap.Logger

	mu    sync.RWMutex
	token string

	// refreshGroup collapses concurrent re-authentication attempts into a
	// single in-flight login; late callers wait and share its outcome.
	refreshGroup singleflight.Group
}

func New(cfg *config.KnxConfig, login LoginFunc) *service {
	// work on a copy, defaults must not leak back into the caller's config
	own := *cfg
	if own.RequestTimeout == 0 {
		own.RequestTimeout = 15 * time.Second
	}
	if own.LoginTimeout == 0 {
		own.LoginTimeout = 3 * time.Minute
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if own.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &service{
		cfg: &own,
		client: &http.Client{
			Transport: transport,
			Timeout:   own.RequestTimeout,
		},
		login:  login,
		logger: zap.L(),
	}
}

// Token returns the current session token. Empty until the first successful
// re-authentication.
func (s *service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *service) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}
