package types

import "strings"

// RelevanceTier is a coarse ranking of how likely a source is to answer a
// query. Lower Rank() means more relevant. TierNone excludes the source
// from execution entirely.
type RelevanceTier string

const (
	TierPrimary   RelevanceTier = "primary"
	TierSecondary RelevanceTier = "secondary"
	TierTertiary  RelevanceTier = "tertiary"
	TierNone      RelevanceTier = "none"
)

// IsValid checks if the relevance tier is valid
func (t RelevanceTier) IsValid() bool {
	switch t {
	case TierPrimary, TierSecondary, TierTertiary, TierNone:
		return true
	default:
		return false
	}
}

// Rank returns the numeric order of the tier. Smaller is more relevant.
// TierNone sorts last.
func (t RelevanceTier) Rank() int {
	switch t {
	case TierPrimary:
		return 0
	case TierSecondary:
		return 1
	case TierTertiary:
		return 2
	default:
		return 3
	}
}

// Searchable reports whether a source at this tier may execute at all
func (t RelevanceTier) Searchable() bool {
	return t != TierNone
}

// String returns the string representation of the relevance tier
func (t RelevanceTier) String() string {
	return string(t)
}

// tierAliases maps free-text phrasings the model tends to produce onto
// canonical tiers. Matching is done on the normalized (lowercase, trimmed)
// value.
var tierAliases = map[string]RelevanceTier{
	"primary":      TierPrimary,
	"high":         TierPrimary,
	"main":         TierPrimary,
	"1":            TierPrimary,
	"secondary":    TierSecondary,
	"medium":       TierSecondary,
	"moderate":     TierSecondary,
	"2":            TierSecondary,
	"tertiary":     TierTertiary,
	"low":          TierTertiary,
	"minor":        TierTertiary,
	"3":            TierTertiary,
	"none":         TierNone,
	"irrelevant":   TierNone,
	"not relevant": TierNone,
	"no":           TierNone,
	"skip":         TierNone,
}

// ParseRelevanceTier parses model output into a RelevanceTier. The grammar is
// intentionally small; anything outside it is treated as TierPrimary so a
// malformed rating can never silently drop a real source.
func ParseRelevanceTier(s string) RelevanceTier {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.Trim(normalized, `"'.`)
	if tier, ok := tierAliases[normalized]; ok {
		return tier
	}
	return TierPrimary
}
