// Package middleware provides net/http middleware for request IDs, request
// logging and security headers.
//
//	h := middleware.Chain(mux,
//		middleware.RequestID(),
//		middleware.Logging(log),
//		middleware.SecurityHeaders(),
//	)
//
// The logging middleware forwards http.Hijacker, so websocket endpoints can
// sit behind it.
package middleware
