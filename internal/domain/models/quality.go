package models

// QualityFlag is the fixed vocabulary describing why a snapshot may be unusable.
type QualityFlag string

const (
	FlagAuthFail          QualityFlag = "AUTH_FAIL"
	FlagRateLimited       QualityFlag = "RATE_LIMITED"
	FlagNoData            QualityFlag = "NO_DATA"
	FlagProviderError     QualityFlag = "PROVIDER_ERROR"
	FlagTimeout           QualityFlag = "TIMEOUT"
	FlagStale             QualityFlag = "STALE"
	FlagIncompleteWindow  QualityFlag = "INCOMPLETE_WINDOW"
	FlagIntradayDisabled  QualityFlag = "INTRADAY_DISABLED"
	FlagSymbolQuarantined QualityFlag = "SYMBOL_QUARANTINED"
)

// ReasonCode is the single machine-readable reason a label writer skips a datapoint.
// The empty ReasonCode means "do not skip".
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonSymbolQuarantined ReasonCode = ReasonCode(FlagSymbolQuarantined)
	ReasonAuthFail          ReasonCode = ReasonCode(FlagAuthFail)
	ReasonRateLimited       ReasonCode = ReasonCode(FlagRateLimited)
	ReasonNoData            ReasonCode = ReasonCode(FlagNoData)
	ReasonIncompleteWindow  ReasonCode = ReasonCode(FlagIncompleteWindow)
	ReasonIntradayDisabled  ReasonCode = ReasonCode(FlagIntradayDisabled)
	ReasonTimeout           ReasonCode = ReasonCode(FlagTimeout)
	ReasonProviderError     ReasonCode = ReasonCode(FlagProviderError)
	ReasonLowCompleteness   ReasonCode = "LOW_COMPLETENESS"
	ReasonMissingMeta       ReasonCode = "MISSING_META"
)

// FlagSet is an insertion-ordered set of quality flags.
type FlagSet struct {
	order []QualityFlag
	seen  map[QualityFlag]struct{}
}

// Add inserts flags that are not yet present.
func (s *FlagSet) Add(flags ...QualityFlag) {
	if s.seen == nil {
		s.seen = make(map[QualityFlag]struct{}, len(flags))
	}
	for _, f := range flags {
		if f == "" {
			continue
		}
		if _, ok := s.seen[f]; ok {
			continue
		}
		s.seen[f] = struct{}{}
		s.order = append(s.order, f)
	}
}

// Has reports whether f was added.
func (s *FlagSet) Has(f QualityFlag) bool {
	_, ok := s.seen[f]
	return ok
}

// Len returns the number of distinct flags.
func (s *FlagSet) Len() int { return len(s.order) }

// Slice returns the flags in insertion order.
func (s *FlagSet) Slice() []QualityFlag {
	out := make([]QualityFlag, len(s.order))
	copy(out, s.order)
	return out
}

// HasFlag reports whether flags contains f.
func HasFlag(flags []QualityFlag, f QualityFlag) bool {
	for _, x := range flags {
		if x == f {
			return true
		}
	}
	return false
}
