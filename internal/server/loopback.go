package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/threadx/internal/shared"
)

// LoopbackAuthorizer receives the OAuth redirect on a local listener.
type LoopbackAuthorizer struct {
	addr   string
	path   string
	open   shared.BrowserOpener
	logger *log.Logger
}

// NewLoopbackAuthorizer creates a [LoopbackAuthorizer] listening on addr for the path of
// redirectURI. A nil opener only logs the URL for the user to visit.
func NewLoopbackAuthorizer(addr, redirectURI string, open shared.BrowserOpener, logger *log.Logger) (*LoopbackAuthorizer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	if addr == "" {
		addr = u.Host
	}
	return &LoopbackAuthorizer{
		addr:   addr,
		path:   u.Path,
		open:   open,
		logger: shared.WithLogger(logger, "component", "loopback"),
	}, nil
}

// Authorize serves the callback route, directs the user to authURL, and returns the
// redirect URL once it arrives.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, authURL string) (string, error) {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return "", fmt.Errorf("%w: listen on %s: %v", shared.ErrAuthorizationFailed, a.addr, err)
	}
	return a.serve(ctx, ln, authURL)
}

func (a *LoopbackAuthorizer) serve(ctx context.Context, ln net.Listener, authURL string) (string, error) {
	handler := NewCallbackHandler(a.path)
	router := NewBasicRouter()
	router.Use(RequestLogger(a.logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("waiting for authorization", "callback", "http://"+ln.Addr().String()+a.path)
	if a.open == nil {
		a.logger.Warn("open this URL to continue", "url", authURL)
	} else if err := a.open(authURL); err != nil {
		a.logger.Warn("could not open a browser, open this URL to continue", "url", authURL, "error", err)
	}

	select {
	case res := <-handler.Result():
		if err := res.Error(); err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrAuthorizationFailed, err)
		}
		return res.URL, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", shared.ErrUserCancelled, ctx.Err())
	}
}
