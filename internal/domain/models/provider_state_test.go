package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderHealth_Available(t *testing.T) {
	now := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Second), now.Add(time.Minute)

	tests := []struct {
		name string
		h    ProviderHealth
		want bool
	}{
		{"closed", ProviderHealth{State: BreakerClosed}, true},
		{"half open", ProviderHealth{State: BreakerHalfOpen, OpenUntil: &past}, true},
		{"open cooling down", ProviderHealth{State: BreakerOpen, OpenUntil: &future}, false},
		{"open cooldown elapsed", ProviderHealth{State: BreakerOpen, OpenUntil: &past}, true},
		{"open at boundary", ProviderHealth{State: BreakerOpen, OpenUntil: &now}, true},
		{"open without deadline", ProviderHealth{State: BreakerOpen}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.h.Available(now))
		})
	}
}
