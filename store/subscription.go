package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phillip/parenting-hub-go/apperr"
)

var errFeedClosed = errors.New("live feed closed by backend")

// Subscription is a live query. It keeps the last delivered result set and
// the last feed error until Unsubscribe is called.
type Subscription[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.RWMutex
	items []T
	err   error
}

// Items returns a copy of the last delivered result set.
func (s *Subscription[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Err returns the last feed error, cleared by the next successful delivery.
func (s *Subscription[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Unsubscribe stops the feed and waits for it to wind down. Safe to call more
// than once.
func (s *Subscription[T]) Unsubscribe() {
	s.cancel()
	<-s.done
}

// Done is closed once the feed has stopped.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

func (s *Subscription[T]) deliver(items []T) {
	s.mu.Lock()
	s.items = items
	s.err = nil
	s.mu.Unlock()
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Subscribe starts a live feed of q. fn, if not nil, receives the full result
// set on every change. A failing feed is recorded on the subscription and
// re-established with backoff; only Unsubscribe or ctx ends it.
func (g *Gateway[T, P]) Subscribe(ctx context.Context, q Query, fn func([]T)) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{cancel: cancel, done: make(chan struct{})}
	go g.watch(ctx, q, sub, fn)
	return sub
}

func (g *Gateway[T, P]) watch(ctx context.Context, q Query, sub *Subscription[T], fn func([]T)) {
	defer close(sub.done)

	b := g.retry.reconnect()
	for {
		err := g.backend.Watch(ctx, g.collection, q, func(snaps []Snapshot) {
			items, err := decodeAll[T, P](snaps)
			if err != nil {
				sub.fail(err)
				g.setLastErr(err)
				return
			}
			b.Reset()
			sub.deliver(items)
			if fn != nil {
				fn(items)
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errFeedClosed
		}

		err = apperr.Transport(g.op("subscribe"), classify(err), err)
		sub.fail(err)
		g.setLastErr(err)

		wait := b.NextBackOff()
		g.log.WarnContext(ctx, "live feed failed",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", wait),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
