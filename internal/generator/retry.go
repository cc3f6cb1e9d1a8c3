package generator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// RetryPolicy bounds repeated model calls: attempts is the total number of
// tries, backoff the pause before each retry. Backoff doubles per attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 2 * time.Second}

// retry runs fn until it succeeds, the attempt budget is spent, or ctx is
// canceled. Invalid-request errors are not retried; re-asking the model the
// same malformed question cannot help the caller.
func retry(ctx context.Context, p RetryPolicy, op string, fn func() error) error {
	if p.Attempts <= 0 {
		p = DefaultRetryPolicy
	}

	var lastErr error
	backoff := p.Backoff
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, models.ErrInvalidRequest) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}

		if attempt < p.Attempts {
			log.Printf("[generator] %s attempt %d/%d failed: %v", op, attempt, p.Attempts, lastErr)
			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
			t.Stop()
			backoff *= 2
		}
	}

	return models.GeneratorFailuref("%s failed after %d attempts: %v", op, p.Attempts, lastErr)
}
