package paginator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/NepsyCrawler/internal/domain"
)

// Sleep waits a random duration within d. It returns early with the context error.
func Sleep(ctx context.Context, d domain.Delay) error {
	wait := pick(d)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func pick(d domain.Delay) time.Duration {
	if d.Max <= 0 {
		return 0
	}
	if d.Max <= d.Min {
		return d.Max
	}
	return d.Min + rand.N(d.Max-d.Min)
}

func effectiveDelay(def domain.Delay, override domain.Delay) domain.Delay {
	if override.Max > 0 {
		return override
	}
	return def
}
