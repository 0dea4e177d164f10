package pg

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// backoff returns an exponential policy allowing attempts tries in total.
func backoff(attempts int, base time.Duration) retry.Backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	retries := uint64(0)
	if attempts > 1 {
		retries = uint64(attempts - 1)
	}
	return retry.WithMaxRetries(retries, retry.WithJitterPercent(10, retry.NewExponential(base)))
}

// RetrySerializable runs fn again while it fails with a serialization
// failure or deadlock, up to attempts tries.
func RetrySerializable(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	b := retry.WithCappedDuration(250*time.Millisecond, backoff(attempts, 5*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if IsSerializationError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
