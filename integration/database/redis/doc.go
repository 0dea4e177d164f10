// Package redis connects to Redis with retry and exposes a readiness probe.
//
// Connect validates the URL (redis:// or rediss://), builds a go-redis client
// and pings it with exponential backoff until it answers or ConnectTimeout
// elapses. The returned client is used by the broadcast fabric for pub/sub.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		// callers may degrade instead of failing
//	}
//	defer client.Close()
//
// Errors can be matched with errors.Is:
//
//   - ErrEmptyConnectionURL
//   - ErrFailedToParseRedisConnString
//   - ErrRedisNotReady
//   - ErrHealthcheckFailed
package redis
