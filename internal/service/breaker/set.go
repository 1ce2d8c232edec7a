package breaker

import "MarketGate/internal/domain/models"

// Set holds one breaker per configured provider. The map is fixed after
// construction, so lookups need no lock.
type Set struct {
	order    []string
	breakers map[string]*Breaker
}

func NewSet(names []string, cfg Config, opts ...Option) *Set {
	s := &Set{order: append([]string(nil), names...), breakers: make(map[string]*Breaker, len(names))}
	for _, n := range names {
		s.breakers[n] = New(n, cfg, opts...)
	}
	return s
}

// Get returns the breaker for name, or nil for an unknown provider.
func (s *Set) Get(name string) *Breaker {
	return s.breakers[name]
}

// Names returns providers in configured order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Health returns the diagnostic view of every breaker.
func (s *Set) Health() map[string]models.ProviderHealth {
	out := make(map[string]models.ProviderHealth, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.Health()
	}
	return out
}
