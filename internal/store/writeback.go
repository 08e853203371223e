package store

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/internal/registry"
)

// Writeback periodically syncs the registry snapshot to the store. Mutators
// call Trigger after a state change to pull the next sync forward; durability
// stays eventual either way, and a failed cycle just leaves the store one
// snapshot behind.
type Writeback struct {
	store    Store
	reg      *registry.Registry
	interval time.Duration
	trigger  chan struct{}
	stop     chan bool
}

func NewWriteback(s Store, reg *registry.Registry, interval time.Duration) *Writeback {
	return &Writeback{
		store:    s,
		reg:      reg,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan bool),
	}
}

// Trigger requests a sync soon. Never blocks; coalesces with a pending
// request.
func (w *Writeback) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Writeback) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			// Final best-effort sync before shutdown.
			w.sync(ctx)
			return
		case <-ticker.C:
			w.sync(ctx)
		case <-w.trigger:
			w.sync(ctx)
		}
	}
}

func (w *Writeback) Stop() {
	w.stop <- true
}

func (w *Writeback) sync(ctx context.Context) {
	snapshot := w.reg.Snapshot()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second

	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return w.store.SyncFollowups(ctx, snapshot)
	}, b)

	if err != nil {
		metrics.PersistFailures.Inc()
		log.Printf("Persistence sync failed, in-memory state remains source of truth: %v", err)
	}
}
