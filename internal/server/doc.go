// Package server provides HTTP routing, middleware, and OAuth handling for the CLI and the web API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
// [BasicRouter.Mount] hands a whole path prefix to a sub-router; `serve` mounts the gin API
// under /api so it shares the router's middleware.
//
// # Middleware
//
//   - [RequestLogger] : one log line per request with status and duration
//   - [Throttle] : per-client token buckets from golang.org/x/time/rate, 429 when empty
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback for `auth spotify`.
// It validates the state parameter, asks an [Exchanger] to trade the code for tokens,
// and sends the result through a channel. Only one callback is processed.
package server
