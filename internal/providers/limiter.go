package providers

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/erg0nix/chatdesk/internal/core"
)

type Completer interface {
	Complete(ctx context.Context, model string, messages []core.Message) (core.Completion, error)
}

// Limiter caps how many completion requests are in flight at once. One
// Limiter is shared by every client the daemon dials.
type Limiter struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// NewLimiter returns nil when limit is not positive; a nil Limiter does not limit.
func NewLimiter(limit int) *Limiter {
	if limit <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(limit))}
}

func (l *Limiter) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

func (l *Limiter) release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// InFlight reports how many requests currently hold a slot.
func (l *Limiter) InFlight() int {
	if l == nil {
		return 0
	}
	return int(l.inFlight.Load())
}

func (l *Limiter) Wrap(c Completer) Completer {
	if l == nil {
		return c
	}
	return &limitedCompleter{limiter: l, next: c}
}

type limitedCompleter struct {
	limiter *Limiter
	next    Completer
}

func (c *limitedCompleter) Complete(ctx context.Context, model string, messages []core.Message) (core.Completion, error) {
	if err := c.limiter.acquire(ctx); err != nil {
		return core.Completion{}, err
	}
	defer c.limiter.release()

	return c.next.Complete(ctx, model, messages)
}
