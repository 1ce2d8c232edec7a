package models

import "time"

// EventType classifies gateway events published for observability.
type EventType string

const (
	EventBreakerTransition EventType = "breaker_transition"
	EventSymbolQuarantined EventType = "symbol_quarantined"
	EventSymbolReleased    EventType = "symbol_released"
)

// GatewayEvent is a state change worth telling other systems about.
type GatewayEvent struct {
	Type     EventType    `json:"type"`
	Provider string       `json:"provider,omitempty"`
	Symbol   string       `json:"symbol,omitempty"`
	From     BreakerState `json:"from,omitempty"`
	To       BreakerState `json:"to,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Until    time.Time    `json:"until,omitempty"`
	At       time.Time    `json:"at"`
}

// Key is the partitioning key used by ordered transports.
func (e GatewayEvent) Key() string {
	if e.Provider != "" {
		return e.Provider
	}
	return e.Symbol
}
