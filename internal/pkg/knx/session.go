package knx

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/anicoll/knx-integration/internal/pkg/contxt"
)

// Reauthenticate forces a session refresh through the injected login
// capability. Safe to call concurrently: all callers collapse onto one
// in-flight login and share its result.
func (s *service) Reauthenticate(ctx context.Context) error {
	return s.refresh(ctx, s.Token())
}

// refresh replaces the session token that was current when stale was read.
// If another dispatcher already swapped the token in the meantime the
// refresh is skipped and the caller retries with the newer token.
func (s *service) refresh(ctx context.Context, stale string) error {
	_, err, shared := s.refreshGroup.Do("session", func() (any, error) {
		if current := s.Token(); current != stale {
			s.logger.Debug("session already refreshed by another dispatcher")
			return nil, nil
		}

		s.logger.Info("refreshing session")
		// The login flow outlives any single request: an interactive login
		// can take minutes, and its result is shared by every dispatcher.
		loginCtx := contxt.NewContext(s.cfg.LoginTimeout)
		token, err := s.login(loginCtx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, errors.New("login returned an empty session token")
		}
		s.setToken(token)
		s.logger.Info("session refreshed")
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if shared {
		s.logger.Debug("joined in-flight session refresh")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// ValidateSession probes the backend with a cheap page request. A 401 means
// the token has silently expired; there is no other expiry signal.
func (s *service) ValidateSession(ctx context.Context) (bool, error) {
	status, _, err := s.do(ctx, http.MethodGet, s.pageURL(s.Token(), "00"))
	if err != nil {
		return false, err
	}
	switch {
	case status >= 200 && status < 300:
		return true, nil
	case status == http.StatusUnauthorized:
		s.logger.Warn("session is no longer valid")
		return false, nil
	default:
		s.logger.Warn("unexpected status during session validation", zap.Int("status", status))
		return false, nil
	}
}
