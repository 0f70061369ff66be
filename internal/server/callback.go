package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var errMissingParams = errors.New("callback has neither code nor error parameters")

// CallbackResult is the outcome of one redirect to the callback route.
type CallbackResult struct {
	URL string
	err error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler records the first request to its route. Implements [Handler].
type CallbackHandler struct {
	path        string
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a [CallbackHandler] serving path.
func NewCallbackHandler(path string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{
		path:       path,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP captures the redirect URL, including its query, and answers the browser.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	result := CallbackResult{URL: callbackURL(r)}
	status, title, message := http.StatusOK, "Authorization Received", "You can close this window and return to the terminal."
	switch {
	case q.Get("error") != "":
		title, message = "Authorization Declined", fmt.Sprintf("The provider returned %q. Return to the terminal for details.", q.Get("error"))
	case q.Get("code") == "":
		result.err = errMissingParams
		status, title, message = http.StatusBadRequest, "Authorization Failed", "The redirect carried neither a code nor an error."
	}
	h.Send(result)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	fmt.Fprintf(w, callbackPage, title, title, message)
}

// Send delivers the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel that receives exactly one [CallbackResult] and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}

const callbackPage = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f8fa; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1d9bf0; margin: 0 0 1rem 0; }
        p { color: #536471; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`
