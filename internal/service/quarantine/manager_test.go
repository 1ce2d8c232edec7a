package quarantine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func TestQuarantineLifecycle(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), {Threshold: 1, Cooldown: time.Minute}, {Threshold: 3, Cooldown: time.Hour, Shards: 4}} {
		t.Run(fmt.Sprintf("threshold=%d", cfg.Threshold), func(t *testing.T) {
			require.NoError(t, cfg.Validate())
			clk := &clock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
			var entered []models.QuarantineRecord
			m := New(cfg, WithClock(clk.Now), WithOnQuarantine(func(r models.QuarantineRecord) { entered = append(entered, r) }))

			for i := 1; i < cfg.Threshold; i++ {
				_, q := m.RecordFailure("ZZZZ", "NO_DATA")
				assert.False(t, q)
				_, active := m.Check("ZZZZ")
				assert.False(t, active)
			}

			rec, q := m.RecordFailure("ZZZZ", "NO_DATA")
			require.True(t, q)
			assert.Equal(t, cfg.Threshold, rec.FullChainFailureCount)
			assert.Equal(t, clk.t.Add(cfg.Cooldown), rec.QuarantinedUntil)
			require.Len(t, entered, 1)

			got, active := m.Check("ZZZZ")
			require.True(t, active)
			assert.Equal(t, "NO_DATA", got.Reason)
			assert.Len(t, m.List(), 1)

			// further failures while quarantined do not re-enter
			_, q = m.RecordFailure("ZZZZ", "NO_DATA")
			assert.False(t, q)
			assert.Len(t, entered, 1)

			clk.t = rec.QuarantinedUntil.Add(-time.Nanosecond)
			_, active = m.Check("ZZZZ")
			assert.True(t, active)

			clk.t = rec.QuarantinedUntil
			_, active = m.Check("ZZZZ")
			assert.False(t, active)
			assert.Empty(t, m.List())
		})
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	m := New(Config{Threshold: 2, Cooldown: time.Hour})
	m.RecordFailure("AAPL", "TIMEOUT")
	m.RecordSuccess("AAPL")
	_, q := m.RecordFailure("AAPL", "TIMEOUT")
	assert.False(t, q)
}

func TestRelease(t *testing.T) {
	var released []string
	m := New(Config{Threshold: 1, Cooldown: time.Hour}, WithOnRelease(func(r models.QuarantineRecord) { released = append(released, r.Symbol) }))

	assert.False(t, m.Release("AAPL"))
	m.RecordFailure("AAPL", "AUTH_FAIL")
	assert.True(t, m.Release("AAPL"))
	_, active := m.Check("AAPL")
	assert.False(t, active)
	assert.Equal(t, []string{"AAPL"}, released)
}

func TestListSortedAndConcurrent(t *testing.T) {
	m := New(Config{Threshold: 1, Cooldown: time.Hour, Shards: 8})
	var wg sync.WaitGroup
	for _, s := range []string{"MSFT", "AAPL", "NVDA", "AMZN"} {
		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			m.RecordFailure(s, "NO_DATA")
		}(s)
	}
	wg.Wait()

	list := m.List()
	require.Len(t, list, 4)
	assert.Equal(t, "AAPL", list[0].Symbol)
	assert.Equal(t, "NVDA", list[3].Symbol)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Config{Threshold: 0, Cooldown: time.Hour}.Validate())
	assert.Error(t, Config{Threshold: 1}.Validate())
}
