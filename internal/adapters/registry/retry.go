package registry

import (
	"context"
	"time"

	"go.trai.ch/zerr"
)

// retryWithBackoff retries op up to maxAttempts times with exponential
// backoff, checking ctx between attempts.
//
// op returns (retry bool, err error). When retry is false the error is
// returned immediately, nil on success. On exhaustion the last error is
// returned.
func retryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return zerr.Wrap(err, "retry aborted")
			}
			time.Sleep(baseBackoff * time.Duration(1<<(attempt-1)))
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}
