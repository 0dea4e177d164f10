// Package clientip extracts the originating client IP address from an HTTP
// request, honoring the headers set by common proxies and CDNs.
//
// Headers are checked in priority order:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (leftmost entry)
//  4. X-Real-IP
//  5. RemoteAddr
//
// Every candidate is validated with net.ParseIP and normalized. The unspecified
// addresses 0.0.0.0 and :: are rejected. When nothing valid is found the raw
// RemoteAddr is returned, so GetIP never returns an empty string for a real
// request.
//
//	origin := clientip.GetIP(r)
package clientip
