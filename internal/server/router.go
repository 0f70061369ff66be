package server

import (
	"net/http"
	"sort"
)

// BasicRouter is the [Router] used by the loopback callback server.
//
// Routes are registered as method patterns on an [http.ServeMux], so a request with
// the wrong method gets a 405 from the mux itself.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	patterns    []string
}

// NewBasicRouter creates an empty [BasicRouter].
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware. The first one added runs first.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.register(method+" "+path, r.Apply(handler))
}

// Handler registers every route of handler for GET, the only method a browser
// redirect uses.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.register(http.MethodGet+" "+route, wrapped)
	}
}

func (r *BasicRouter) register(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
	r.patterns = append(r.patterns, pattern)
}

// Patterns lists the registered patterns in sorted order.
func (r *BasicRouter) Patterns() []string {
	out := append([]string(nil), r.patterns...)
	sort.Strings(out)
	return out
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler with the middleware stack.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	return handler
}
