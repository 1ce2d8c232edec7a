package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketGate/internal/domain/models"
)

// Config holds the breaker policy shared by every provider.
type Config struct {
	FailureThreshold int
	FailureWindow    time.Duration
	BaseBackoff      time.Duration
	BackoffFactor    float64
	MaxBackoff       time.Duration
}

// DefaultConfig mirrors the production policy: four failures inside ten
// minutes open the circuit for ten minutes, doubling up to an hour.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 4,
		FailureWindow:    10 * time.Minute,
		BaseBackoff:      10 * time.Minute,
		BackoffFactor:    2,
		MaxBackoff:       time.Hour,
	}
}

// Validate checks the policy is usable.
func (c Config) Validate() error {
	var errs []error
	if c.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("failure threshold must be >= 1, got %d", c.FailureThreshold))
	}
	if c.FailureWindow <= 0 {
		errs = append(errs, errors.New("failure window must be positive"))
	}
	if c.BaseBackoff <= 0 {
		errs = append(errs, errors.New("base backoff must be positive"))
	}
	if c.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("backoff factor must be >= 1, got %v", c.BackoffFactor))
	}
	if c.MaxBackoff < c.BaseBackoff {
		errs = append(errs, errors.New("max backoff must be >= base backoff"))
	}
	return errors.Join(errs...)
}

// Transition describes one state change.
type Transition struct {
	Provider  string
	From      models.BreakerState
	To        models.BreakerState
	OpenUntil time.Time
	Reason    string
	At        time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithOnTransition registers a callback invoked after every state change,
// outside the breaker lock.
func WithOnTransition(fn func(Transition)) Option {
	return func(b *Breaker) { b.onTransition = fn }
}

// Breaker is the failure state machine of one provider.
type Breaker struct {
	mu           sync.Mutex
	cfg          Config
	st           models.ProviderState
	trial        bool
	now          func() time.Time
	onTransition func(Transition)
}

func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		cfg: cfg,
		st:  models.ProviderState{Name: name, State: models.BreakerClosed, BackoffMultiplier: 1},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.st.Name }

// Allow reports whether the provider may be called now. Once OpenUntil has
// passed, the first caller moves the breaker to half_open and gets the single
// trial; everyone else is denied until that trial is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var tr *Transition
	allowed := false
	switch b.st.State {
	case models.BreakerClosed:
		allowed = true
	case models.BreakerOpen:
		if now := b.now(); !now.Before(b.st.OpenUntil) {
			tr = b.transition(models.BreakerHalfOpen, "cooldown elapsed", now)
			b.trial = true
			allowed = true
		}
	case models.BreakerHalfOpen:
		if !b.trial {
			b.trial = true
			allowed = true
		}
	}
	b.mu.Unlock()
	b.emit(tr)
	return allowed
}

// RecordSuccess closes the breaker and resets its counters. A success from a
// call admitted before the circuit opened leaves it open until OpenUntil.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	if b.st.State == models.BreakerOpen {
		b.mu.Unlock()
		return
	}
	var tr *Transition
	if b.st.State == models.BreakerHalfOpen {
		tr = b.transition(models.BreakerClosed, "trial succeeded", b.now())
	}
	b.reset()
	b.mu.Unlock()
	b.emit(tr)
}

// Release hands back an admission that never reached the provider. A pending
// half-open trial becomes available to the next caller.
func (b *Breaker) Release() {
	b.mu.Lock()
	if b.st.State == models.BreakerHalfOpen {
		b.trial = false
	}
	b.mu.Unlock()
}

// RecordNeutral notes an outcome that proves the provider is reachable but
// says nothing about its health (an unknown symbol, for instance). It never
// opens the circuit; a half-open trial ending this way closes it.
func (b *Breaker) RecordNeutral(err error) {
	b.mu.Lock()
	now := b.now()
	b.noteError(err, now)
	var tr *Transition
	if b.st.State == models.BreakerHalfOpen {
		tr = b.transition(models.BreakerClosed, "trial reached provider", now)
		b.reset()
	}
	b.mu.Unlock()
	b.emit(tr)
}

// RecordFailure counts a provider failure.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	now := b.now()
	b.noteError(err, now)

	var tr *Transition
	switch b.st.State {
	case models.BreakerHalfOpen:
		b.trial = false
		b.st.BackoffMultiplier *= b.cfg.BackoffFactor
		b.st.OpenUntil = now.Add(b.backoff())
		tr = b.transition(models.BreakerOpen, "trial failed", now)
	case models.BreakerClosed:
		if b.st.FailureWindowStart.IsZero() || now.Sub(b.st.FailureWindowStart) > b.cfg.FailureWindow {
			b.st.FailureWindowStart = now
			b.st.ConsecutiveFailures = 1
		} else {
			b.st.ConsecutiveFailures++
		}
		if b.st.ConsecutiveFailures >= b.cfg.FailureThreshold {
			b.st.OpenUntil = now.Add(b.backoff())
			tr = b.transition(models.BreakerOpen, "failure threshold reached", now)
		}
	case models.BreakerOpen:
		// A call admitted before the breaker opened finished late.
		b.st.ConsecutiveFailures++
	}
	b.mu.Unlock()
	b.emit(tr)
}

// State returns a copy of the provider state.
func (b *Breaker) State() models.ProviderState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// Health returns the read-only diagnostic view.
func (b *Breaker) Health() models.ProviderHealth {
	st := b.State()
	h := models.ProviderHealth{
		State:        st.State,
		FailureCount: st.ConsecutiveFailures,
		LastError:    st.LastError,
	}
	if !st.OpenUntil.IsZero() && st.State != models.BreakerClosed {
		until := st.OpenUntil
		h.OpenUntil = &until
	}
	if !st.LastErrorAt.IsZero() {
		at := st.LastErrorAt
		h.LastErrorAt = &at
	}
	return h
}

// backoff is BaseBackoff × multiplier, capped at MaxBackoff.
func (b *Breaker) backoff() time.Duration {
	d := time.Duration(float64(b.cfg.BaseBackoff) * b.st.BackoffMultiplier)
	if d > b.cfg.MaxBackoff || d <= 0 {
		d = b.cfg.MaxBackoff
	}
	return d
}

func (b *Breaker) reset() {
	b.trial = false
	b.st.ConsecutiveFailures = 0
	b.st.FailureWindowStart = time.Time{}
	b.st.OpenUntil = time.Time{}
	b.st.BackoffMultiplier = 1
}

func (b *Breaker) noteError(err error, now time.Time) {
	if err == nil {
		return
	}
	b.st.LastError = err.Error()
	b.st.LastErrorAt = now
}

func (b *Breaker) transition(to models.BreakerState, reason string, now time.Time) *Transition {
	tr := &Transition{
		Provider:  b.st.Name,
		From:      b.st.State,
		To:        to,
		OpenUntil: b.st.OpenUntil,
		Reason:    reason,
		At:        now,
	}
	b.st.State = to
	return tr
}

func (b *Breaker) emit(tr *Transition) {
	if tr != nil && b.onTransition != nil {
		b.onTransition(*tr)
	}
}
