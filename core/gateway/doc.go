// Package gateway binds live client connections to sessions and pushes
// session events to them.
//
// A connection moves through four states: connecting, authenticating, bound
// and closed. During authentication the access token is taken from the
// handshake (Authorization header, a "bearer.<token>" websocket subprotocol
// or the token query parameter), verified, and the session it names must
// still exist. Failures close the connection with an application close code:
//
//	4001 missing-token
//	4003 invalid-or-expired-token
//	4000 force-logout
//
// Bound connections accept JSON commands:
//
//	{"type": "ping"}
//	{"type": "logout-all-devices"}
//	{"type": "logout-device", "session_id": "..."}
//
// and receive force-logout, session-list-changed, pong and error messages.
// Session tokens are never sent to clients. A force-logout carries
// "targeted": true on the one connection whose session it names; that
// connection is closed right after delivery.
//
// The Hub implements fabric.Sink, so events published on any instance reach
// every local connection of the principal:
//
//	hub, err := gateway.NewHub(manager, gateway.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	fab.SetSink(hub)
//
//	handler, err := gateway.NewHandler(hub, verifier)
//	mux.Handle("GET /ws", handler)
//
// Browser clients that pass the token as a subprotocol must also offer
// Config.Subprotocol, since the server has to select one of the offered
// protocols.
package gateway
