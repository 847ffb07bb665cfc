// Package rates holds the Bs-per-USD exchange rate used to stamp ventas.
// The rate is an injected value: sales never block on a remote lookup, and
// an optional background refresher keeps it current.
package rates

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Persister saves and restores the last known rate across restarts.
type Persister interface {
	Load(ctx context.Context) (decimal.Decimal, bool, error)
	Save(ctx context.Context, rate decimal.Decimal) error
}

// Source is the single authority for the current exchange rate. Reads are
// lock-cheap; writes come from the refresher or an operator default.
type Source struct {
	mu        sync.RWMutex
	rate      decimal.Decimal
	updatedAt time.Time
	persister Persister
}

// NewSource seeds the rate with the configured default, then tries to
// restore a more recent value from the persister if one is attached.
func NewSource(ctx context.Context, defaultRate decimal.Decimal, persister Persister) *Source {
	s := &Source{
		rate:      defaultRate,
		updatedAt: time.Now().UTC(),
		persister: persister,
	}

	if persister != nil {
		saved, ok, err := persister.Load(ctx)
		if err != nil {
			log.Printf("[rates] WARN: failed to restore persisted rate: %v", err)
		} else if ok && saved.Sign() > 0 {
			s.rate = saved
		}
	}

	return s
}

// Current returns the rate the next venta would be stamped with.
func (s *Source) Current() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

// UpdatedAt returns when the rate last changed.
func (s *Source) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Set replaces the rate. Non-positive values are ignored so a broken feed
// can never zero out pricing.
func (s *Source) Set(ctx context.Context, rate decimal.Decimal) {
	if rate.Sign() <= 0 {
		log.Printf("[rates] WARN: ignoring non-positive rate %s", rate)
		return
	}

	s.mu.Lock()
	s.rate = rate
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(ctx, rate); err != nil {
			log.Printf("[rates] WARN: failed to persist rate: %v", err)
		}
	}
}
