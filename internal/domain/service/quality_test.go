package service

import (
	"testing"

	"MarketGate/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allFlags = []models.QualityFlag{
	models.FlagAuthFail,
	models.FlagRateLimited,
	models.FlagNoData,
	models.FlagProviderError,
	models.FlagTimeout,
	models.FlagStale,
	models.FlagIncompleteWindow,
	models.FlagIntradayDisabled,
	models.FlagSymbolQuarantined,
}

func TestIsDegraded_AnyDegradingFlag(t *testing.T) {
	for _, threshold := range []float64{0.3, 0.5, 0.9} {
		p := NewQualityPolicy(threshold)
		for _, f := range allFlags {
			meta := &models.SnapshotMeta{QualityFlags: []models.QualityFlag{f}, DataCompleteness: 1}
			assert.Equalf(t, f != models.FlagStale, p.IsDegraded(meta), "flag %s threshold %v", f, threshold)
		}
	}
}

func TestIsDegraded_MonotonicOverFlags(t *testing.T) {
	p := NewQualityPolicy(0.5)
	// every subset of the vocabulary: degraded iff a degrading flag is present
	for mask := 0; mask < 1<<len(allFlags); mask++ {
		var flags []models.QualityFlag
		want := false
		for i, f := range allFlags {
			if mask&(1<<i) != 0 {
				flags = append(flags, f)
				if IsDegradingFlag(f) {
					want = true
				}
			}
		}
		meta := &models.SnapshotMeta{QualityFlags: flags, DataCompleteness: 1}
		require.Equal(t, want, p.IsDegraded(meta), "flags %v", flags)
	}
}

func TestIsDegraded_Completeness(t *testing.T) {
	p := NewQualityPolicy(0.6)
	assert.True(t, p.IsDegraded(&models.SnapshotMeta{DataCompleteness: 0.59}))
	assert.False(t, p.IsDegraded(&models.SnapshotMeta{DataCompleteness: 0.6}))
	assert.True(t, p.IsDegraded(nil))
}

func TestLabelSkipReason_Priority(t *testing.T) {
	p := NewQualityPolicy(0.5)
	cases := []struct {
		flags []models.QualityFlag
		want  models.ReasonCode
	}{
		{[]models.QualityFlag{models.FlagNoData, models.FlagSymbolQuarantined}, models.ReasonSymbolQuarantined},
		{[]models.QualityFlag{models.FlagRateLimited, models.FlagAuthFail}, models.ReasonAuthFail},
		{[]models.QualityFlag{models.FlagNoData, models.FlagRateLimited}, models.ReasonRateLimited},
		{[]models.QualityFlag{models.FlagIncompleteWindow, models.FlagNoData}, models.ReasonNoData},
		{[]models.QualityFlag{models.FlagIncompleteWindow}, models.ReasonIncompleteWindow},
		{[]models.QualityFlag{models.FlagTimeout, models.FlagProviderError}, models.ReasonTimeout},
		{[]models.QualityFlag{models.FlagStale}, models.ReasonNone},
		{nil, models.ReasonNone},
	}
	for _, tc := range cases {
		meta := &models.SnapshotMeta{QualityFlags: tc.flags, DataCompleteness: 1}
		assert.Equalf(t, tc.want, p.LabelSkipReason(meta), "flags %v", tc.flags)
	}
	assert.Equal(t, models.ReasonLowCompleteness, p.LabelSkipReason(&models.SnapshotMeta{DataCompleteness: 0.1}))
	assert.Equal(t, models.ReasonMissingMeta, p.LabelSkipReason(nil))
}

func TestLabelSkipReason_Deterministic(t *testing.T) {
	p := NewQualityPolicy(0.5)
	a := &models.SnapshotMeta{QualityFlags: []models.QualityFlag{models.FlagTimeout, models.FlagAuthFail, models.FlagNoData}}
	b := &models.SnapshotMeta{QualityFlags: []models.QualityFlag{models.FlagNoData, models.FlagTimeout, models.FlagAuthFail}}
	first := p.LabelSkipReason(a)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, p.LabelSkipReason(a))
		require.Equal(t, first, p.LabelSkipReason(b))
	}
}

func TestLabelSkipReason_NonNullWheneverDegraded(t *testing.T) {
	p := NewQualityPolicy(0.5)
	for mask := 0; mask < 1<<len(allFlags); mask++ {
		var flags []models.QualityFlag
		for i, f := range allFlags {
			if mask&(1<<i) != 0 {
				flags = append(flags, f)
			}
		}
		meta := &models.SnapshotMeta{QualityFlags: flags, DataCompleteness: 1}
		require.Equal(t, p.IsDegraded(meta), p.LabelSkipReason(meta) != models.ReasonNone, "flags %v", flags)
	}
}
