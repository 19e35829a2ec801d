package knx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Control string actions understood by the visu control endpoint.
const (
	actionActivate = "01"
	actionStop     = "02"
	actionDown     = "03"
)

// controlString encodes the vendor wire format "{index}+{action}+00+{page}".
// Production commands arrive pre-encoded from the mapping file; this is the
// reference encoding the tests pin the format against.
func controlString(index, action, page string) string {
	return fmt.Sprintf("%s+%s+00+%s", index, action, page)
}

func (s *service) controlURL(token, command string) string {
	return fmt.Sprintf("%s/visu/controlKNX?%s&session_id=%s", s.cfg.BaseURL, command, token)
}

func (s *service) pageURL(token, page string) string {
	return fmt.Sprintf("%s/visu/index.fcgi?%s&session_id=%s&lang=en", s.cfg.BaseURL, page, token)
}

// SendCommand dispatches one control string. A 401 triggers exactly one
// serialized re-authentication and one retry; a second 401 surfaces as
// ErrAuthenticationFailed so a backend that never accepts credentials cannot
// put the bridge into a retry loop.
func (s *service) SendCommand(ctx context.Context, command string) error {
	token := s.Token()
	s.logger.Debug("sending command", zap.String("command", command))

	err := s.attempt(ctx, http.MethodPost, s.controlURL(token, command), nil)
	if !errors.Is(err, ErrUnauthorized) {
		if err != nil {
			return fmt.Errorf("command dispatch: %w", err)
		}
		return nil
	}

	s.logger.Warn("session expired, refreshing before retry", zap.String("command", command))
	if err := s.refresh(ctx, token); err != nil {
		return err
	}

	err = s.attempt(ctx, http.MethodPost, s.controlURL(s.Token(), command), nil)
	if errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("%w: backend rejected a refreshed session", ErrAuthenticationFailed)
	}
	if err != nil {
		return fmt.Errorf("command dispatch after refresh: %w", err)
	}
	s.logger.Debug("command sent after session refresh", zap.String("command", command))
	return nil
}

// FetchPage retrieves the rendered visu page, used by the discovery
// collaborator. Same retry-once-on-401 policy as SendCommand.
func (s *service) FetchPage(ctx context.Context, page string) (string, error) {
	token := s.Token()

	var body []byte
	err := s.attempt(ctx, http.MethodGet, s.pageURL(token, page), &body)
	if !errors.Is(err, ErrUnauthorized) {
		if err != nil {
			return "", fmt.Errorf("page %s fetch: %w", page, err)
		}
		return string(body), nil
	}

	s.logger.Warn("session expired while fetching page", zap.String("page", page))
	if err := s.refresh(ctx, token); err != nil {
		return "", err
	}

	err = s.attempt(ctx, http.MethodGet, s.pageURL(s.Token(), page), &body)
	if errors.Is(err, ErrUnauthorized) {
		return "", fmt.Errorf("%w: backend rejected a refreshed session", ErrAuthenticationFailed)
	}
	if err != nil {
		return "", fmt.Errorf("page %s fetch after refresh: %w", page, err)
	}
	return string(body), nil
}

// attempt performs a single authenticated request. 401 maps to
// ErrUnauthorized, any other non-2xx to ErrRequestFailed. When out is
// non-nil the response body is stored there.
func (s *service) attempt(ctx context.Context, method, url string, out *[]byte) error {
	status, body, err := s.do(ctx, method, url)
	if err != nil {
		return err
	}
	switch {
	case status >= 200 && status < 300:
		if out != nil {
			*out = body
		}
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: status %d", ErrRequestFailed, status)
	}
}

func (s *service) do(ctx context.Context, method, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, body, nil
}
