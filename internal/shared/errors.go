package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrInvalidClient        = fmt.Errorf("invalid OAuth client")
	ErrAuthorizationFailed  = fmt.Errorf("authorization failed")
	ErrTokenExchangeFailed  = fmt.Errorf("token exchange failed")
	ErrInvalidResponse      = fmt.Errorf("invalid authorization response")
	ErrStateMismatch        = fmt.Errorf("authorization state mismatch")
	ErrNoRefreshToken       = fmt.Errorf("no refresh token available")
	ErrUserCancelled        = fmt.Errorf("authorization cancelled by user")
	ErrAuthorizationPending = fmt.Errorf("authorization already in progress")

	// API errors
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrRateLimited    = fmt.Errorf("rate limited")
	ErrInvalidRequest = fmt.Errorf("invalid request")
	ErrServerError    = fmt.Errorf("server error")
	ErrNetwork        = fmt.Errorf("network error")
	ErrDecoding       = fmt.Errorf("failed to decode response")

	// Media errors
	ErrImageTooLarge    = fmt.Errorf("image too large")
	ErrUploadFailed     = fmt.Errorf("media upload failed")
	ErrProcessingFailed = fmt.Errorf("media processing failed")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Composer errors
	ErrEmptyContent = fmt.Errorf("thread has no content to post")
	ErrInvalidState = fmt.Errorf("invalid thread state")

	// Store errors
	ErrNotFound          = fmt.Errorf("not found")
	ErrUnexpectedFailure = fmt.Errorf("unexpected store failure")

	// Input validation errors
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrMissingArgument  = fmt.Errorf("missing required argument")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrTooManyMedia     = fmt.Errorf("too many attachments")
	ErrThreadNotFound   = fmt.Errorf("thread not found")
	ErrItemNotFound     = fmt.Errorf("thread item not found")
	ErrLastItemRequired = fmt.Errorf("a thread must keep at least one item")
)
