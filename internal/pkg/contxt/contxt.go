package contxt

import (
	"context"
	"os"
	"time"
)

// NewContext returns a context that expires after timeout, detached from
// any caller context. The session refresh uses it so a slow interactive
// login is bounded by its own clock, not by whichever request happened to
// trigger the refresh. CONTEXT_TEST disables the timeout entirely.
func NewContext(timeout time.Duration) context.Context {
	if os.Getenv("CONTEXT_TEST") != "" {
		return context.Background()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
