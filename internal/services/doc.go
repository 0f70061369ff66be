// Package services implements the authenticated client for the X API v2.
//
// # Request execution
//
// [APIClient.Do] obtains a bearer token from a [TokenProvider] (normally the OAuth
// service, which refreshes expired tokens), performs the request, and classifies the
// status:
//   - 2xx: the raw body is returned for typed decoding
//   - 401: [shared.ErrUnauthorized]
//   - 429: [shared.ErrRateLimited], with ResetAt from the x-rate-limit-reset header
//   - other 4xx: [shared.ErrInvalidRequest] carrying the body text
//   - 5xx: [shared.ErrServerError] carrying the status code
//
// Transport failures surface as [shared.ErrNetwork] and undecodable bodies as
// [shared.ErrDecoding]. Every classified failure is an [*APIError] that unwraps to
// its sentinel, so callers match with [errors.Is] and inspect details with [errors.As].
//
// Nothing here retries. Rate limiting is passed through to the caller; optional
// client-side pacing uses a token bucket from golang.org/x/time/rate.
//
// # Endpoints
//
//   - [APIClient.PostItem]: POST /tweets with optional media ids and reply target
//   - [APIClient.GetCurrentUser]: GET /users/me, cached in memory
//
// [APIClient.Send] is the unclassified primitive the media uploader builds on.
package services
