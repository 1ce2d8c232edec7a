package quarantine

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"MarketGate/internal/domain/models"
)

// Config is the symbol quarantine policy.
type Config struct {
	Threshold int
	Cooldown  time.Duration
	Shards    int
}

func DefaultConfig() Config {
	return Config{Threshold: 5, Cooldown: 24 * time.Hour, Shards: 32}
}

func (c Config) Validate() error {
	if c.Threshold < 1 {
		return errors.New("symbol fail threshold must be >= 1")
	}
	if c.Cooldown <= 0 {
		return errors.New("symbol cooldown must be positive")
	}
	return nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOnQuarantine is called, outside any lock, when a symbol enters quarantine.
func WithOnQuarantine(fn func(models.QuarantineRecord)) Option {
	return func(m *Manager) { m.onQuarantine = fn }
}

// WithOnRelease is called when an operator lifts a quarantine.
func WithOnRelease(fn func(models.QuarantineRecord)) Option {
	return func(m *Manager) { m.onRelease = fn }
}

type record struct {
	failures int
	until    time.Time
	reason   string
}

type shard struct {
	mu sync.Mutex
	m  map[string]*record
}

// Manager counts consecutive full-chain failures per symbol and suppresses
// symbols that keep failing.
type Manager struct {
	cfg          Config
	shards       []*shard
	now          func() time.Time
	onQuarantine func(models.QuarantineRecord)
	onRelease    func(models.QuarantineRecord)
}

func New(cfg Config, opts ...Option) *Manager {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	m := &Manager{cfg: cfg, shards: make([]*shard, cfg.Shards), now: time.Now}
	for i := range m.shards {
		m.shards[i] = &shard{m: make(map[string]*record)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) shardFor(symbol string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// Check reports whether symbol is quarantined now. An expired quarantine is
// cleared together with its failure counter.
func (m *Manager) Check(symbol string) (models.QuarantineRecord, bool) {
	now := m.now()
	s := m.shardFor(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.m[symbol]
	if !ok || r.until.IsZero() {
		return models.QuarantineRecord{}, false
	}
	if !now.Before(r.until) {
		delete(s.m, symbol)
		return models.QuarantineRecord{}, false
	}
	return toRecord(symbol, r), true
}

// RecordFailure counts one exhausted chain for symbol and quarantines it once
// the count reaches the threshold.
func (m *Manager) RecordFailure(symbol, reason string) (models.QuarantineRecord, bool) {
	now := m.now()
	s := m.shardFor(symbol)
	s.mu.Lock()
	r, ok := s.m[symbol]
	if !ok {
		r = &record{}
		s.m[symbol] = r
	}
	r.failures++
	r.reason = reason
	entered := false
	if r.until.IsZero() && r.failures >= m.cfg.Threshold {
		r.until = now.Add(m.cfg.Cooldown)
		entered = true
	}
	rec := toRecord(symbol, r)
	s.mu.Unlock()

	if entered && m.onQuarantine != nil {
		m.onQuarantine(rec)
	}
	return rec, entered
}

// RecordSuccess clears the symbol's failure counter.
func (m *Manager) RecordSuccess(symbol string) {
	s := m.shardFor(symbol)
	s.mu.Lock()
	delete(s.m, symbol)
	s.mu.Unlock()
}

// Release lifts a quarantine early. It reports whether one was active.
func (m *Manager) Release(symbol string) bool {
	now := m.now()
	s := m.shardFor(symbol)
	s.mu.Lock()
	r, ok := s.m[symbol]
	active := ok && !r.until.IsZero() && now.Before(r.until)
	var rec models.QuarantineRecord
	if ok {
		rec = toRecord(symbol, r)
		delete(s.m, symbol)
	}
	s.mu.Unlock()

	if active && m.onRelease != nil {
		m.onRelease(rec)
	}
	return active
}

// List returns active quarantines ordered by symbol.
func (m *Manager) List() []models.QuarantineRecord {
	now := m.now()
	out := make([]models.QuarantineRecord, 0)
	for _, s := range m.shards {
		s.mu.Lock()
		for sym, r := range s.m {
			if !r.until.IsZero() && now.Before(r.until) {
				out = append(out, toRecord(sym, r))
			}
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func toRecord(symbol string, r *record) models.QuarantineRecord {
	return models.QuarantineRecord{
		Symbol:                symbol,
		QuarantinedUntil:      r.until,
		Reason:                r.reason,
		FullChainFailureCount: r.failures,
	}
}
