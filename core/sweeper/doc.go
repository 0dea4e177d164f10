// Package sweeper removes dead sessions on a fixed interval.
//
// Each sweep deletes every expired or idle session in one store call, then
// publishes a single force-logout with reason session-expired per affected
// principal. Connected clients re-check their own session on receipt, so only
// connections whose session was removed are closed.
//
// Sweeps never overlap: a tick that finds the previous sweep still running is
// skipped and counted. A failed sweep is logged and the scheduler keeps
// ticking.
//
//	s, err := sweeper.NewFromConfig(cfg, manager,
//		sweeper.WithPublisher(fab),
//		sweeper.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	g.Go(s.Run(ctx))
package sweeper
