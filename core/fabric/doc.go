// Package fabric propagates session events to every service instance.
//
// An Event is either ForceLogout or SessionListChanged, addressed to all live
// connections of one principal. Publish seals the event into an Envelope and
// queues it; background workers hand envelopes to a shared pub/sub transport
// (Redis in multi-instance deployments, in-memory otherwise). Every instance,
// the sender included, receives envelopes from the transport and passes the
// decoded events to its Sink.
//
//	fab, err := fabric.New(transport, fabric.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	fab.SetSink(hub)
//	g.Go(fab.Run(ctx))
//
// Delivery is at-most-once. A full dispatch shard drops the event, and a
// transport publish is retried a bounded number of times before the event is
// dropped. Events for one principal always go through the same shard, which
// keeps their publish order.
package fabric
