package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
)

// TokenProvider yields a usable bearer token, refreshing it when needed.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to [TokenProvider].
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken is a [TokenProvider] that always returns the same token.
type StaticToken string

func (s StaticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

// Publisher creates posts and identifies the signed-in account.
type Publisher interface {
	PostItem(ctx context.Context, text string, mediaIDs []string, replyToID string) (*PostResult, error)
	GetCurrentUser(ctx context.Context) (*models.AuthenticatedUser, error)
}

// PostResult is the platform's answer to a post creation.
type PostResult struct {
	ID   string
	Text string
}

// APIError describes a classified failure from the platform API.
//
// Kind is one of the API sentinels in [shared] and is what [errors.Is] matches.
type APIError struct {
	Kind       error
	StatusCode int
	ResetAt    *time.Time
	Detail     string
}

func (e *APIError) Error() string {
	switch {
	case errors.Is(e.Kind, shared.ErrRateLimited) && e.ResetAt != nil:
		return fmt.Sprintf("%v: resets at %s", e.Kind, e.ResetAt.Format(time.RFC3339))
	case errors.Is(e.Kind, shared.ErrServerError):
		return fmt.Sprintf("%v: status %d", e.Kind, e.StatusCode)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	default:
		return e.Kind.Error()
	}
}

func (e *APIError) Unwrap() error { return e.Kind }

// RateLimitResetHeader carries the epoch second at which the rate window reopens.
const RateLimitResetHeader = "x-rate-limit-reset"

// Classify maps a non-2xx response to an [APIError]. It returns nil for 2xx.
func Classify(status int, header http.Header, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &APIError{Kind: shared.ErrUnauthorized, StatusCode: status, Detail: detail(body)}
	case status == http.StatusTooManyRequests:
		return &APIError{Kind: shared.ErrRateLimited, StatusCode: status, ResetAt: parseReset(header)}
	case status >= 400 && status < 500:
		return &APIError{Kind: shared.ErrInvalidRequest, StatusCode: status, Detail: detail(body)}
	case status >= 500:
		return &APIError{Kind: shared.ErrServerError, StatusCode: status}
	default:
		return &APIError{Kind: shared.ErrInvalidRequest, StatusCode: status, Detail: fmt.Sprintf("unexpected status %d", status)}
	}
}

func parseReset(h http.Header) *time.Time {
	v := strings.TrimSpace(h.Get(RateLimitResetHeader))
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(secs, 0)
	return &t
}

func detail(body []byte) string {
	return shared.Truncate(strings.TrimSpace(string(body)), 500)
}
