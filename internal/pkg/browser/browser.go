package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/anicoll/knx-integration/internal/pkg/config"
)

const (
	// defaultMaxPolls bounds the wait for the post-login redirect: one poll
	// per second, so three minutes for an interactive login to complete.
	defaultMaxPolls = 180

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrRedirectTimeout = errors.New("login redirect did not complete in time")
	ErrNoSessionID     = errors.New("no session_id found in URL")
)

// service drives the vendor login page in a real browser. The visu issues
// session tokens only through this flow; there is no credential API.
type service struct {
	baseURL  string
	creds    *config.Credentials
	headless bool
	maxPolls int
	logger   *zap.Logger
}

func New(baseURL string, creds *config.Credentials, headless bool) *service {
	return &service{
		baseURL:  baseURL,
		creds:    creds,
		headless: headless,
		maxPolls: defaultMaxPolls,
		logger:   zap.L(),
	}
}

// Login fills the login form and waits for the redirect back to the visu,
// which carries the fresh session token in its query string. Satisfies
// knx.LoginFunc.
func (s *service) Login(ctx context.Context) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	startURL := s.baseURL + "/visu/index.fcgi?00"
	s.logger.Info("navigating to login page", zap.String("url", startURL))

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(startURL),
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`, nil),
		chromedp.WaitVisible(`input[name='email']`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name='email']`, s.creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name='password']`, s.creds.Password, chromedp.ByQuery),
		chromedp.Click(`button[type='submit']`, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("login form submission: %w", err)
	}

	s.logger.Info("waiting for redirect back to visu")
	finalURL, err := s.waitForRedirect(ctx, tabCtx)
	if err != nil {
		return "", err
	}

	token, err := ExtractSessionID(finalURL)
	if err != nil {
		return "", err
	}
	s.logger.Info("login successful, session token extracted")
	return token, nil
}

// waitForRedirect polls the tab URL once per second until it carries a
// session_id, up to maxPolls attempts.
func (s *service) waitForRedirect(ctx, tabCtx context.Context) (string, error) {
	for attempt := 1; attempt <= s.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}

		var current string
		if err := chromedp.Run(tabCtx, chromedp.Location(&current)); err != nil {
			return "", fmt.Errorf("reading tab location: %w", err)
		}
		if strings.Contains(current, "session_id=") {
			return current, nil
		}
		s.logger.Debug("still waiting for redirect",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxPolls))
	}
	return "", ErrRedirectTimeout
}

// ExtractSessionID pulls the session_id query parameter out of the final
// post-login URL.
func ExtractSessionID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	token := parsed.Query().Get("session_id")
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSessionID, rawURL)
	}
	return token, nil
}
