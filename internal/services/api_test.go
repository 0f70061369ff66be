package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/shared"
	tu "github.com/desertthunder/threadx/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAPIClient(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Empty BaseURL", func(t *testing.T) {
			c := NewAPIClient("", StaticToken("t"), nil)
			if c.baseURL != defaultBaseURL {
				t.Errorf("expected default base url, got %s", c.baseURL)
			}
			if c.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			c := NewAPIClient("http://example.com/2/", StaticToken("t"), nil)
			if c.baseURL != "http://example.com/2" {
				t.Errorf("unexpected base url %s", c.baseURL)
			}
		})

		t.Run("Rate Limit Option", func(t *testing.T) {
			if c := NewAPIClient("", StaticToken("t"), nil, WithRateLimit(0)); c.limiter != nil {
				t.Error("zero rps should disable pacing")
			}
			if c := NewAPIClient("", StaticToken("t"), nil, WithRateLimit(2)); c.limiter == nil {
				t.Error("expected limiter")
			}
		})
	})

	t.Run("Do", func(t *testing.T) {
		t.Run("Sends Bearer Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("expected bearer header, got %q", got)
				}
				if r.URL.Path != "/2/ping" {
					t.Errorf("expected path /2/ping, got %s", r.URL.Path)
				}
				w.Write([]byte(`{"ok":true}`))
			}))
			defer server.Close()

			c := NewAPIClient(server.URL+"/2", StaticToken("secret"), nil)
			body, err := c.Do(context.Background(), http.MethodGet, "/ping", nil, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if string(body) != `{"ok":true}` {
				t.Errorf("unexpected body %s", body)
			}
		})

		t.Run("Classification", func(t *testing.T) {
			tc := []struct {
				name   string
				status int
				header map[string]string
				body   string
				want   error
				check  func(t *testing.T, e *APIError)
			}{
				{name: "201 success", status: http.StatusCreated, body: "{}"},
				{name: "204 success", status: http.StatusNoContent},
				{name: "401 unauthorized", status: http.StatusUnauthorized, want: shared.ErrUnauthorized},
				{
					name:   "429 with reset",
					status: http.StatusTooManyRequests,
					header: map[string]string{"x-rate-limit-reset": "1700000000"},
					want:   shared.ErrRateLimited,
					check: func(t *testing.T, e *APIError) {
						if e.ResetAt == nil || e.ResetAt.Unix() != 1700000000 {
							t.Errorf("expected reset at 1700000000, got %v", e.ResetAt)
						}
					},
				},
				{
					name:   "429 without reset",
					status: http.StatusTooManyRequests,
					want:   shared.ErrRateLimited,
					check: func(t *testing.T, e *APIError) {
						if e.ResetAt != nil {
							t.Errorf("expected no reset time, got %v", e.ResetAt)
						}
					},
				},
				{
					name:   "403 invalid request carries body",
					status: http.StatusForbidden,
					body:   `{"detail":"duplicate content"}`,
					want:   shared.ErrInvalidRequest,
					check: func(t *testing.T, e *APIError) {
						if !strings.Contains(e.Detail, "duplicate content") {
							t.Errorf("expected body in detail, got %q", e.Detail)
						}
					},
				},
				{
					name:   "503 server error",
					status: http.StatusServiceUnavailable,
					want:   shared.ErrServerError,
					check: func(t *testing.T, e *APIError) {
						if e.StatusCode != 503 || !strings.Contains(e.Error(), "503") {
							t.Errorf("expected status 503 in error, got %v", e)
						}
					},
				},
			}

			for _, tt := range tc {
				t.Run(tt.name, func(t *testing.T) {
					server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						for k, v := range tt.header {
							w.Header().Set(k, v)
						}
						w.WriteHeader(tt.status)
						io.WriteString(w, tt.body)
					}))
					defer server.Close()

					c := NewAPIClient(server.URL, StaticToken("t"), nil)
					_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, "")

					if tt.want == nil {
						if err != nil {
							t.Fatalf("expected success, got %v", err)
						}
						return
					}
					if !errors.Is(err, tt.want) {
						t.Fatalf("expected %v, got %v", tt.want, err)
					}
					var apiErr *APIError
					if !errors.As(err, &apiErr) {
						t.Fatalf("expected *APIError, got %T", err)
					}
					if tt.check != nil {
						tt.check(t, apiErr)
					}
				})
			}
		})

		t.Run("Network Error", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			c := NewAPIClient("http://example.com", StaticToken("t"), client)

			_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, "")
			if !errors.Is(err, shared.ErrNetwork) {
				t.Errorf("expected ErrNetwork, got %v", err)
			}
		})

		t.Run("Body Read Failure", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			c := NewAPIClient("http://example.com", StaticToken("t"), client)

			_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, "")
			if !errors.Is(err, shared.ErrNetwork) {
				t.Errorf("expected ErrNetwork, got %v", err)
			}
		})

		t.Run("Token Failure Skips Request", func(t *testing.T) {
			rt := &tu.RecordingTransport{}
			tokens := TokenFunc(func(context.Context) (string, error) { return "", shared.ErrNoRefreshToken })
			c := NewAPIClient("http://example.com", tokens, &http.Client{Transport: rt})

			_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, "")
			if !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
			if rt.Calls() != 0 {
				t.Errorf("expected no requests, got %d", rt.Calls())
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			c := NewAPIClient("http://example.com", StaticToken("t"), nil)
			_, err := c.Do(context.Background(), http.MethodGet, "/test\x00invalid", nil, "")
			if !errors.Is(err, shared.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})

		t.Run("Records Metrics", func(t *testing.T) {
			rt := &tu.RecordingTransport{}
			m := metrics.New()
			c := NewAPIClient("http://example.com/2", StaticToken("t"), &http.Client{Transport: rt}, WithMetrics(m))

			if _, err := c.Do(context.Background(), http.MethodGet, "/users/me", nil, ""); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := testutil.ToFloat64(m.Requests.WithLabelValues("/2/users/me", "200")); got != 1 {
				t.Errorf("expected one recorded request, got %v", got)
			}
		})

		t.Run("Rate Limiter Honors Context", func(t *testing.T) {
			rt := &tu.RecordingTransport{}
			c := NewAPIClient("http://example.com", StaticToken("t"), &http.Client{Transport: rt}, WithRateLimit(0.001))

			if _, err := c.Do(context.Background(), http.MethodGet, "/a", nil, ""); err != nil {
				t.Fatalf("first request should pass, got %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			if _, err := c.Do(ctx, http.MethodGet, "/b", nil, ""); !errors.Is(err, shared.ErrNetwork) {
				t.Errorf("expected paced request to fail with ErrNetwork, got %v", err)
			}
			if rt.Calls() != 1 {
				t.Errorf("expected one request on the wire, got %d", rt.Calls())
			}
		})
	})
}

func TestPostItem(t *testing.T) {
	t.Run("Text Only", func(t *testing.T) {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/tweets" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected json content type, got %s", ct)
			}
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"data":{"id":"100","text":"hello"}}`)
		}))
		defer server.Close()

		c := NewAPIClient(server.URL, StaticToken("t"), nil)
		res, err := c.PostItem(context.Background(), "hello", nil, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ID != "100" || res.Text != "hello" {
			t.Errorf("unexpected result %+v", res)
		}
		if got["text"] != "hello" {
			t.Errorf("expected text field, got %v", got)
		}
		if _, ok := got["media"]; ok {
			t.Error("media should be omitted")
		}
		if _, ok := got["reply"]; ok {
			t.Error("reply should be omitted")
		}
	})

	t.Run("Media And Reply", func(t *testing.T) {
		var got tweetRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			io.WriteString(w, `{"data":{"id":"101","text":"second"}}`)
		}))
		defer server.Close()

		c := NewAPIClient(server.URL, StaticToken("t"), nil)
		if _, err := c.PostItem(context.Background(), "second", []string{"m1", "m2"}, "100"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Media == nil || strings.Join(got.Media.MediaIDs, ",") != "m1,m2" {
			t.Errorf("unexpected media %+v", got.Media)
		}
		if got.Reply == nil || got.Reply.InReplyToTweetID != "100" {
			t.Errorf("unexpected reply %+v", got.Reply)
		}
	})

	t.Run("Decoding Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `not json`)
		}))
		defer server.Close()

		c := NewAPIClient(server.URL, StaticToken("t"), nil)
		if _, err := c.PostItem(context.Background(), "x", nil, ""); !errors.Is(err, shared.ErrDecoding) {
			t.Errorf("expected ErrDecoding, got %v", err)
		}
	})

	t.Run("Missing Id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"data":{}}`)
		}))
		defer server.Close()

		c := NewAPIClient(server.URL, StaticToken("t"), nil)
		if _, err := c.PostItem(context.Background(), "x", nil, ""); !errors.Is(err, shared.ErrDecoding) {
			t.Errorf("expected ErrDecoding, got %v", err)
		}
	})
}

func TestGetCurrentUser(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/users/me" || r.URL.Query().Get("user.fields") != "profile_image_url" {
			t.Errorf("unexpected request %s", r.URL)
		}
		io.WriteString(w, `{"data":{"id":"42","username":"gopher","name":"Go Pher","profile_image_url":"https://img/x.png"}}`)
	}))
	defer server.Close()

	c := NewAPIClient(server.URL, StaticToken("t"), nil)

	user, err := c.GetCurrentUser(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "42" || user.Username != "gopher" || user.Name != "Go Pher" || user.AvatarURL != "https://img/x.png" {
		t.Errorf("unexpected user %+v", user)
	}

	if _, err := c.GetCurrentUser(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected cached user, got %d calls", calls.Load())
	}

	c.ClearUser()
	if _, err := c.GetCurrentUser(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected refetch after ClearUser, got %d calls", calls.Load())
	}
}
