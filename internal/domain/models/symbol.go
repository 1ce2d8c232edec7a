package models

// NormalizedSymbol is the canonical form of a raw ticker string.
// Canonical is empty whenever Valid is false.
type NormalizedSymbol struct {
	Raw       string   `json:"raw"`
	Canonical string   `json:"canonical,omitempty"`
	Valid     bool     `json:"valid"`
	Warnings  []string `json:"warnings,omitempty"`
}
