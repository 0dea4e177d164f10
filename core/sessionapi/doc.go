// Package sessionapi exposes session management over JSON HTTP endpoints.
//
// Every request carries the caller's access token (Authorization bearer
// header or token query parameter). The token must verify and the session it
// names must still be live, otherwise the request fails with 401. Errors use
// a small JSON body:
//
//	{"code": "forbidden", "message": "session belongs to another account"}
//
// Status mapping: missing or invalid token 401, foreign session 403, unknown
// session 404, datastore unavailable 503.
//
// Cross-origin access is controlled by Config.AllowedOrigins through
// github.com/rs/cors.
package sessionapi
