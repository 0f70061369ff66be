package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Authorizer performs the interactive step of the authorization flow: it shows
// authURL to the user and returns the full redirect URL the provider called back with.
//
// Implementations fail with [shared.ErrUserCancelled] when the user abandons the
// flow and [shared.ErrAuthorizationFailed] for anything else.
type Authorizer interface {
	Authorize(ctx context.Context, authURL string) (string, error)
}

// AuthorizerFunc adapts a function to [Authorizer].
type AuthorizerFunc func(ctx context.Context, authURL string) (string, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, authURL string) (string, error) {
	return f(ctx, authURL)
}

// Option configures an [OAuthService].
type Option func(*OAuthService)

// WithHTTPClient sets the client used for token endpoint requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *OAuthService) { s.httpClient = c }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *OAuthService) { s.logger = shared.WithLogger(l, "component", "oauth") }
}

// WithMetrics counts token refreshes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OAuthService) { s.metrics = m }
}

// WithClock replaces time.Now for expiry calculations.
func WithClock(now func() time.Time) Option {
	return func(s *OAuthService) {
		s.now = now
		s.tokens.now = now
	}
}

// OAuthService drives the PKCE authorization handshake and keeps the stored
// credential fresh.
type OAuthService struct {
	config     *oauth2.Config
	tokens     *TokenStore
	authorizer Authorizer
	httpClient *http.Client
	logger     *log.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	refreshes  singleflight.Group

	mu             sync.Mutex
	authenticating bool
	lastErr        error
	verifier       string
	expectedState  string
}

// NewOAuthService creates an [OAuthService] for the client registration in cfg.
func NewOAuthService(cfg shared.XConfig, tokens *TokenStore, authorizer Authorizer, opts ...Option) *OAuthService {
	s := &OAuthService{
		config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens:     tokens,
		authorizer: authorizer,
		logger:     shared.WithLogger(nil, "component", "oauth"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the underlying [TokenStore].
func (s *OAuthService) Tokens() *TokenStore {
	return s.tokens
}

// IsAuthenticating reports whether an authorization attempt is in flight.
func (s *OAuthService) IsAuthenticating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticating
}

// LastError returns the error from the most recent failed operation, if any.
func (s *OAuthService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsAuthenticated reports whether a credential is stored.
func (s *OAuthService) IsAuthenticated() bool {
	return s.tokens.Exists()
}

// AuthorizationURL builds the provider authorization URL for one attempt.
func (s *OAuthService) AuthorizationURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// StartAuthorization runs the full authorization-code flow and persists the
// resulting credential.
func (s *OAuthService) StartAuthorization(ctx context.Context) (Credential, error) {
	if s.config.ClientID == "" {
		return Credential{}, s.fail(fmt.Errorf("%w: client_id is not configured", shared.ErrInvalidClient))
	}

	s.mu.Lock()
	if s.authenticating {
		s.mu.Unlock()
		return Credential{}, shared.ErrAuthorizationPending
	}
	s.authenticating = true
	s.lastErr = nil
	s.verifier = CodeVerifier()
	s.expectedState = State()
	verifier, state := s.verifier, s.expectedState
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.authenticating = false
		s.verifier = ""
		s.expectedState = ""
		s.mu.Unlock()
	}()

	authURL := s.AuthorizationURL(state, verifier)
	s.logger.Debug("requesting authorization", "url", authURL)

	callback, err := s.authorizer.Authorize(ctx, authURL)
	if err != nil {
		if !errors.Is(err, shared.ErrUserCancelled) && !errors.Is(err, shared.ErrAuthorizationFailed) {
			err = fmt.Errorf("%w: %v", shared.ErrAuthorizationFailed, err)
		}
		return Credential{}, s.fail(err)
	}

	code, err := parseCallback(callback, state)
	if err != nil {
		return Credential{}, s.fail(err)
	}

	tok, err := s.config.Exchange(s.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Credential{}, s.fail(classifyTokenError(err))
	}

	cred := credentialFromToken(tok, s.now(), "")
	if err := s.tokens.Save(cred); err != nil {
		return Credential{}, s.fail(err)
	}

	s.logger.Info("authorization complete", "scope", cred.Scope)
	return cred, nil
}

// parseCallback validates the redirect parameters and returns the authorization code.
// The state comparison happens before the code is read.
func parseCallback(callback, expectedState string) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("%w: malformed callback url: %v", shared.ErrInvalidResponse, err)
	}
	q := u.Query()

	if e := q.Get("error"); e != "" {
		if desc := q.Get("error_description"); desc != "" {
			e = e + " - " + desc
		}
		return "", fmt.Errorf("%w: %s", shared.ErrAuthorizationFailed, e)
	}

	if q.Get("state") != expectedState {
		return "", shared.ErrStateMismatch
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: callback has no code", shared.ErrInvalidResponse)
	}
	return code, nil
}

// RefreshAccessToken exchanges the stored refresh token for a new credential.
// Concurrent callers share a single token endpoint request.
func (s *OAuthService) RefreshAccessToken(ctx context.Context) (Credential, error) {
	v, err, joined := s.refreshes.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return Credential{}, err
	}
	if joined {
		s.logger.Debug("joined in-flight refresh")
	}
	return v.(Credential), nil
}

func (s *OAuthService) refresh(ctx context.Context) (Credential, error) {
	current, err := s.tokens.Load()
	if errors.Is(err, shared.ErrNotFound) {
		return Credential{}, s.fail(shared.ErrNoRefreshToken)
	}
	if err != nil {
		return Credential{}, s.fail(err)
	}
	if !current.HasRefreshToken() {
		return Credential{}, s.fail(shared.ErrNoRefreshToken)
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Credential{}, s.fail(classifyTokenError(err))
	}

	cred := credentialFromToken(tok, s.now(), current.RefreshToken)
	if err := s.tokens.Save(cred); err != nil {
		return Credential{}, s.fail(err)
	}

	s.metrics.IncTokenRefresh()
	s.logger.Debug("access token refreshed", "expires_at", cred.ExpiresAt())
	return cred, nil
}

// AccessToken returns a usable access token, refreshing when the stored one expired.
func (s *OAuthService) AccessToken(ctx context.Context) (string, error) {
	if tok := s.tokens.ValidAccessToken(); tok != "" {
		return tok, nil
	}

	cred, err := s.RefreshAccessToken(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// SignOut deletes the stored credential.
func (s *OAuthService) SignOut() error {
	if err := s.tokens.Delete(); err != nil {
		return s.fail(err)
	}
	s.logger.Info("signed out")
	return nil
}

func (s *OAuthService) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// oauthContext carries the token endpoint client. The endpoint only succeeds with 200.
func (s *OAuthService) oauthContext(ctx context.Context) context.Context {
	client := http.Client{}
	if s.httpClient != nil {
		client = *s.httpClient
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = tokenStatusTransport{base: base}
	return context.WithValue(ctx, oauth2.HTTPClient, &client)
}

// tokenStatusTransport turns any 2xx other than 200 into an error. Other statuses
// reach x/oauth2 unchanged and come back as [oauth2.RetrieveError].
type tokenStatusTransport struct {
	base http.RoundTripper
}

func (t tokenStatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d", shared.ErrTokenExchangeFailed, resp.StatusCode)
	}
	return resp, nil
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_client" || re.ErrorCode == "unauthorized_client" {
			return fmt.Errorf("%w: %w: %s", shared.ErrTokenExchangeFailed, shared.ErrInvalidClient, re.ErrorCode)
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("%w: status %d: %s", shared.ErrTokenExchangeFailed, status, re.ErrorCode)
	}
	if errors.Is(err, shared.ErrTokenExchangeFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err)
}
