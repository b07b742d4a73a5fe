// Package dedup gates outbound alerts so each event key fires at most once.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"rainrelay/internal/models"
	"rainrelay/internal/store"
)

// Outcome describes what Dispatch did with an event.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Deduper sits in front of a store and adds an in-flight reservation so that a key
// being dispatched is invisible to every other caller until the send settles.
type Deduper struct {
	store store.Store

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(s store.Store) *Deduper {
	return &Deduper{
		store:    s,
		inflight: make(map[string]struct{}),
	}
}

// ShouldFire reports whether key has neither fired nor is being dispatched.
func (d *Deduper) ShouldFire(ctx context.Context, key models.EventKey) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.inflight[key.String()]; busy {
		return false, nil
	}
	fired, err := d.store.HasFired(ctx, key)
	if err != nil {
		return false, err
	}
	return !fired, nil
}

// MarkFired records key as fired. It returns false when the key had already fired.
func (d *Deduper) MarkFired(ctx context.Context, key models.EventKey) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.store.TryMarkFired(ctx, key)
}

// Dispatch runs send at most once for key. The check and the reservation happen in
// one critical section; send itself runs outside the lock. The key is committed to
// the store only when send succeeds, otherwise the reservation is dropped.
func (d *Deduper) Dispatch(ctx context.Context, key models.EventKey, send func(context.Context) error) (Outcome, error) {
	k := key.String()

	d.mu.Lock()
	if _, busy := d.inflight[k]; busy {
		d.mu.Unlock()
		return OutcomeDuplicate, nil
	}
	fired, err := d.store.HasFired(ctx, key)
	if err != nil {
		d.mu.Unlock()
		return OutcomeFailed, fmt.Errorf("failed to check %s: %w", k, err)
	}
	if fired {
		d.mu.Unlock()
		return OutcomeDuplicate, nil
	}
	d.inflight[k] = struct{}{}
	d.mu.Unlock()

	sendErr := send(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, k)

	if sendErr != nil {
		return OutcomeFailed, sendErr
	}

	// A false result means another process sharing the store won the same key
	// while this send was in flight. Nothing can be done about it now.
	if _, err := d.store.TryMarkFired(ctx, key); err != nil {
		return OutcomeSent, fmt.Errorf("alert for %s sent but not recorded: %w", k, err)
	}
	return OutcomeSent, nil
}

// InFlight returns the number of reservations currently held.
func (d *Deduper) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}
