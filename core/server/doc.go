// Package server wraps http.Server with graceful shutdown, functional options
// and errgroup integration.
//
//	srv, err := server.NewFromConfig(cfg,
//		server.WithLogger(log),
//		server.WithOnShutdown(hub.Close),
//	)
//	if err != nil {
//		return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, handler))
//	return g.Wait()
//
// Shutdown waits for in-flight requests only. Hijacked connections such as
// websockets are closed by the functions registered with WithOnShutdown.
//
// TLS is enabled when Config.TLSCertFile and Config.TLSKeyFile are both set,
// or with WithTLS.
package server
