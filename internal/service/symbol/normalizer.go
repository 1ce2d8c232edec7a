package symbol

import (
	"regexp"
	"strings"

	"MarketGate/internal/domain/models"
)

// Warning codes attached to NormalizedSymbol.
const (
	WarnInvalid         = "SYMBOL_INVALID"
	WarnEmpty           = "empty_symbol"
	WarnBanned          = "symbol_banned"
	WarnSlash           = "symbol_contains_slash"
	WarnTooLong         = "symbol_too_long"
	WarnTooShort        = "symbol_too_short"
	WarnDisallowedChars = "symbol_disallowed_chars"
	WarnUnusualFormat   = "symbol_format_unusual"
	WarnSuffixStripped  = "suffix_stripped"
	WarnAliased         = "alias_applied"
)

var (
	equityRe  = regexp.MustCompile(`^[A-Z0-9]{1,5}(\.[AB])?$`)
	futureRe  = regexp.MustCompile(`^[A-Z]{1,4}=F$`)
	indexRe   = regexp.MustCompile(`^\^[A-Z0-9]{1,10}$`)
	cryptoRe  = regexp.MustCompile(`^[A-Z0-9]{1,10}-USD$`)
	allowedRe = regexp.MustCompile(`^[A-Z0-9.\-=^]+$`)
)

// DefaultAliases remaps legacy and shorthand tickers.
var DefaultAliases = map[string]string{
	"SQ":    "XYZ",
	"FB":    "META",
	"TWTR":  "X",
	"BTC":   "BTC-USD",
	"ETH":   "ETH-USD",
	"SOL":   "SOL-USD",
	"XRP":   "XRP-USD",
	"DOGE":  "DOGE-USD",
	"ADA":   "ADA-USD",
	"AVAX":  "AVAX-USD",
	"LINK":  "LINK-USD",
	"DOT":   "DOT-USD",
	"MATIC": "MATIC-USD",
	"SHIB":  "SHIB-USD",
	"BNB":   "BNB-USD",
	"WIF":   "WIF-USD",
}

// DefaultBanned lists words that look like tickers and dead symbols seen in production.
var DefaultBanned = []string{
	"AI", "API", "APP", "MARKETS", "MARKET", "PREDICTION", "POSTMAN", "FIRMUS",
	"NIKKEI", "CAPITAL", "GOLUB", "GROUP", "HOLDINGS", "TRUMP.X", "U.S.", "DXY",
	"IRN", "USDT", "USDCNY", "EURUSD", "USDJPY", "USDCHF", "NQ", "NDX", "SPX",
	"VIX", "UN", "NKY", "BBD.B", "DN", "BDNCE",
}

// DefaultStripSuffixes are venue suffixes removed before validation.
var DefaultStripSuffixes = []string{".US", ":US", ".O", ".N"}

// Config tunes the normalizer tables.
type Config struct {
	Aliases       map[string]string
	Banned        []string
	StripSuffixes []string
	MaxLength     int
}

// Normalizer validates and canonicalizes raw ticker strings. It is safe for concurrent use.
type Normalizer struct {
	aliases  map[string]string
	banned   map[string]struct{}
	suffixes []string
	maxLen   int
}

// NewNormalizer builds a normalizer; nil tables fall back to the defaults.
func NewNormalizer(cfg Config) *Normalizer {
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = DefaultAliases
	}
	banned := cfg.Banned
	if banned == nil {
		banned = DefaultBanned
	}
	suffixes := cfg.StripSuffixes
	if suffixes == nil {
		suffixes = DefaultStripSuffixes
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 16
	}

	n := &Normalizer{
		aliases:  make(map[string]string, len(aliases)),
		banned:   make(map[string]struct{}, len(banned)),
		suffixes: make([]string, 0, len(suffixes)),
		maxLen:   cfg.MaxLength,
	}
	for k, v := range aliases {
		n.aliases[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	for _, b := range banned {
		n.banned[strings.ToUpper(strings.TrimSpace(b))] = struct{}{}
	}
	for _, s := range suffixes {
		n.suffixes = append(n.suffixes, strings.ToUpper(s))
	}
	return n
}

// Normalize never fails loudly: unusable input comes back with Valid=false and warnings.
func (n *Normalizer) Normalize(raw string) models.NormalizedSymbol {
	out := models.NormalizedSymbol{Raw: raw}
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "$", "")

	for _, suf := range n.suffixes {
		if len(s) > len(suf) && strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			out.Warnings = append(out.Warnings, WarnSuffixStripped)
			break
		}
	}
	if alias, ok := n.aliases[s]; ok {
		s = alias
		out.Warnings = append(out.Warnings, WarnAliased)
	}

	if reason := n.reject(s); reason != "" {
		out.Warnings = append(out.Warnings, WarnInvalid, reason)
		return out
	}

	out.Canonical = s
	out.Valid = true
	return out
}

func (n *Normalizer) reject(s string) string {
	switch {
	case s == "":
		return WarnEmpty
	case len(s) > n.maxLen:
		return WarnTooLong
	case strings.Contains(s, "/"):
		return WarnSlash
	}
	if _, ok := n.banned[s]; ok {
		return WarnBanned
	}
	if !allowedRe.MatchString(s) {
		return WarnDisallowedChars
	}
	if indexRe.MatchString(s) || futureRe.MatchString(s) || cryptoRe.MatchString(s) {
		return ""
	}
	if len(s) == 1 {
		return WarnTooShort
	}
	if !equityRe.MatchString(s) {
		return WarnUnusualFormat
	}
	return ""
}

// IsSpecial reports whether canonical is an index, future or crypto pair.
func IsSpecial(canonical string) bool {
	return indexRe.MatchString(canonical) || futureRe.MatchString(canonical) || cryptoRe.MatchString(canonical)
}
