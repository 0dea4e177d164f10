// Package sessiond assembles a complete sessionhub instance: the session
// store, the broadcast fabric, the connection gateway, the sweep scheduler,
// the session HTTP API and health endpoints behind one HTTP server.
//
//	app, err := sessiond.NewApp(ctx)
//	if err != nil {
//		return err
//	}
//	return app.Run(ctx)
//
// Routes:
//
//	GET    /ws                        live connection (gateway)
//	GET    /sessions                  list the caller's sessions
//	DELETE /sessions                  end every other session
//	DELETE /sessions/{id}             end one session
//	GET    /sessions/current/timeout  remaining lifetime of the caller's session
//	POST   /sessions/current/touch    record activity
//	GET    /health/live
//	GET    /health/ready
//
// STORE_DRIVER selects postgres, sqlite or memory. Redis pub/sub carries
// events between instances; when it is unreachable at startup the instance
// logs "cross-instance broadcast disabled" and falls back to in-process
// delivery.
//
// Shutdown order is fixed: HTTP server, gateway hub, sweeper, fabric,
// broadcast transport, datastore.
package sessiond
