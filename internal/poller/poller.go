// Package poller drives the fetch → classify → dispatch → advance loop that
// moves updates from the Bot API into the fan-out fabric.
package poller

import (
	"context"
	"log"
	"time"

	"github.com/hybridz/telegram-fanout/internal/metrics"
	"github.com/hybridz/telegram-fanout/internal/routing"
	"github.com/hybridz/telegram-fanout/internal/telegram"
)

// Poller owns the update cursor. It is the only writer: the offset advances
// once per batch, to the last update id plus one, after every dispatch in the
// batch has reached a terminal outcome. A crash mid-batch therefore replays
// the whole batch (at-least-once, never skips).
type Poller struct {
	Client     *telegram.Client
	Dispatcher *routing.Dispatcher

	// Offset is the starting cursor; 0 means "wherever the upstream
	// retention begins".
	Offset int64

	// AllowedTypes narrows the upstream fetch to kinds some module wants.
	AllowedTypes []telegram.UpdateType

	PollTimeout time.Duration // long-poll bound on getUpdates
	IdleDelay   time.Duration // pause after an empty batch
	Backoff     time.Duration // pause after a failed fetch, same offset retried
}

// Run loops until ctx is cancelled. Fetch failures are logged and retried at
// the unchanged offset after Backoff. Cancellation is not an error: in-flight
// dispatches for the current update finish, no new ones start, and Run
// returns nil.
func (p *Poller) Run(ctx context.Context) error {
	log.Printf("poller started at offset %d (timeout=%s idle=%s backoff=%s)",
		p.Offset, p.PollTimeout, p.IdleDelay, p.Backoff)

	for {
		if ctx.Err() != nil {
			log.Printf("poller stopping")
			return nil
		}

		updates, err := p.Client.GetUpdates(ctx, p.Offset, p.PollTimeout, p.AllowedTypes)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("poller stopping")
				return nil
			}
			log.Printf("poll error: %v", err)
			metrics.FetchErrors.Inc()
			if !sleep(ctx, p.Backoff) {
				log.Printf("poller stopping")
				return nil
			}
			continue
		}

		if len(updates) == 0 {
			if !sleep(ctx, p.IdleDelay) {
				log.Printf("poller stopping")
				return nil
			}
			continue
		}

		metrics.UpdatesFetched.Add(float64(len(updates)))

		// Updates arrive in ascending id order; dispatch preserves it.
		// Cancellation between updates stops the batch without advancing
		// the cursor, so the remainder is refetched on restart.
		complete := true
		for i := range updates {
			if ctx.Err() != nil {
				complete = false
				break
			}
			u := &updates[i]
			origin := routing.Classify(u)
			log.Printf("received update %d [%s-%s FROM %d]", u.ID, origin.Source, u.Kind(), origin.FromID)
			p.Dispatcher.Dispatch(ctx, u, origin)
		}

		if complete {
			p.Offset = updates[len(updates)-1].ID + 1
		}
	}
}

// sleep waits for d or until ctx is cancelled; reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
