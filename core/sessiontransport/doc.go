// Package sessiontransport carries session identity over HTTP and websocket
// handshakes.
//
// Clients present a short-lived access token signed by this service. The
// token names the principal and holds the opaque session token; Verify
// checks the signature and expiry and returns an Identity. Callers still look
// the session up, since a valid token may outlive a terminated session.
//
//	t, err := sessiontransport.NewJWTFromConfig(cfg)
//	if err != nil {
//		return err
//	}
//
//	access, expiresAt, err := t.Issue(sess.PrincipalID, sess.Token)
//
//	token, _, err := sessiontransport.Extract(r)
//	if err != nil {
//		// 401
//	}
//	id, err := t.Verify(r.Context(), token)
//
// Extract looks at the Authorization header first, then at a websocket
// subprotocol of the form "bearer.<token>", then at the "token" query
// parameter.
package sessiontransport
