package sessiontransport

import (
	"net/http"
	"strings"
)

// SubprotocolPrefix marks a Sec-WebSocket-Protocol entry carrying an access
// token. Browsers cannot set headers on a websocket handshake, so clients
// send "bearer.<token>" as a requested subprotocol.
const SubprotocolPrefix = "bearer."

// Source tells where Extract found the token.
type Source int

const (
	SourceNone Source = iota
	SourceHeader
	SourceSubprotocol
	SourceQuery
)

func (s Source) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceSubprotocol:
		return "subprotocol"
	case SourceQuery:
		return "query"
	}
	return "none"
}

// Extract returns the access token from r. It checks, in order, the
// Authorization bearer header, a "bearer." websocket subprotocol and the
// "token" query parameter.
func Extract(r *http.Request) (string, Source, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", SourceHeader, ErrInvalidToken
		}
		return strings.TrimSpace(token), SourceHeader, nil
	}

	for _, proto := range websocketProtocols(r) {
		if token, ok := strings.CutPrefix(proto, SubprotocolPrefix); ok && token != "" {
			return token, SourceSubprotocol, nil
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, SourceQuery, nil
	}

	return "", SourceNone, ErrNoToken
}

// websocketProtocols lists the requested subprotocols in header order.
func websocketProtocols(r *http.Request) []string {
	var out []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
