package service

import "MarketGate/internal/domain/models"

// DefaultMinCompleteness is the acceptance threshold used when none is configured.
const DefaultMinCompleteness = 0.5

var degradingFlags = map[models.QualityFlag]struct{}{
	models.FlagAuthFail:          {},
	models.FlagRateLimited:       {},
	models.FlagNoData:            {},
	models.FlagProviderError:     {},
	models.FlagTimeout:           {},
	models.FlagIncompleteWindow:  {},
	models.FlagIntradayDisabled:  {},
	models.FlagSymbolQuarantined: {},
}

// skipPriority is evaluated top to bottom; the first flag present wins.
var skipPriority = []models.QualityFlag{
	models.FlagSymbolQuarantined,
	models.FlagAuthFail,
	models.FlagRateLimited,
	models.FlagNoData,
	models.FlagIncompleteWindow,
	models.FlagIntradayDisabled,
	models.FlagTimeout,
	models.FlagProviderError,
}

// QualityPolicy classifies snapshot metadata for fail-closed consumers.
// It only looks at flags and completeness, never at payload values.
type QualityPolicy struct {
	MinCompleteness float64
}

// NewQualityPolicy returns a policy, falling back to DefaultMinCompleteness for out-of-range input.
func NewQualityPolicy(minCompleteness float64) QualityPolicy {
	if minCompleteness <= 0 || minCompleteness > 1 {
		minCompleteness = DefaultMinCompleteness
	}
	return QualityPolicy{MinCompleteness: minCompleteness}
}

// IsDegraded reports whether meta is unsafe for statistics or labels.
func (p QualityPolicy) IsDegraded(meta *models.SnapshotMeta) bool {
	if meta == nil {
		return true
	}
	for _, f := range meta.QualityFlags {
		if _, ok := degradingFlags[f]; ok {
			return true
		}
	}
	return meta.DataCompleteness < p.MinCompleteness
}

// LabelSkipReason maps meta to one canonical reason, or ReasonNone when usable.
func (p QualityPolicy) LabelSkipReason(meta *models.SnapshotMeta) models.ReasonCode {
	if meta == nil {
		return models.ReasonMissingMeta
	}
	for _, f := range skipPriority {
		if models.HasFlag(meta.QualityFlags, f) {
			return models.ReasonCode(f)
		}
	}
	if meta.DataCompleteness < p.MinCompleteness {
		return models.ReasonLowCompleteness
	}
	return models.ReasonNone
}

// IsDegradingFlag reports whether f alone makes a snapshot degraded.
func IsDegradingFlag(f models.QualityFlag) bool {
	_, ok := degradingFlags[f]
	return ok
}
