// Package server provides HTTP routing, middleware, and the loopback receiver for the
// OAuth redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it was added: the first one registered is the outermost wrapper.
//
// [BasicRouter] registers "METHOD /path" patterns on an [http.ServeMux], so requests with
// another method get a 405 and unknown paths a 404.
//
// # Callback Handler
//
// [CallbackHandler] captures the first redirect the provider makes to the registered
// redirect URI and hands the full URL back through a channel. It does not inspect
// the parameters: state verification and the code exchange belong to the auth package.
// Later hits are rejected so a replayed redirect cannot replace the first one.
//
// # Loopback Authorizer
//
// [LoopbackAuthorizer] satisfies auth.Authorizer. It starts a temporary server on
// the configured host and port, opens the system browser at the authorization URL,
// waits for the callback, and shuts the server down. Cancelling the context (Ctrl-C
// or the login timeout) surfaces as [shared.ErrUserCancelled].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
