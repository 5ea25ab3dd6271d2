package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

func TestParseRelevanceTier(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  types.RelevanceTier
	}{
		{"canonical primary", "primary", types.TierPrimary},
		{"canonical secondary", "secondary", types.TierSecondary},
		{"canonical tertiary", "tertiary", types.TierTertiary},
		{"canonical none", "none", types.TierNone},
		{"uppercase", "PRIMARY", types.TierPrimary},
		{"padded", "  secondary  ", types.TierSecondary},
		{"alias high", "high", types.TierPrimary},
		{"alias medium", "medium", types.TierSecondary},
		{"alias low", "low", types.TierTertiary},
		{"alias irrelevant", "irrelevant", types.TierNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Value(t, types.ParseRelevanceTier(tc.input)).Equal(tc.want)
		})
	}
}

func TestParseRelevanceTierFailsOpen(t *testing.T) {
	// an unrecognized rating must not silently drop a source
	gt.Value(t, types.ParseRelevanceTier("extremely-relevant")).Equal(types.TierPrimary)
	gt.Value(t, types.ParseRelevanceTier("???")).Equal(types.TierPrimary)
}

func TestTierRank(t *testing.T) {
	gt.Bool(t, types.TierPrimary.Rank() < types.TierSecondary.Rank()).True()
	gt.Bool(t, types.TierSecondary.Rank() < types.TierTertiary.Rank()).True()
	gt.Bool(t, types.TierTertiary.Rank() < types.TierNone.Rank()).True()
}

func TestTierSearchable(t *testing.T) {
	gt.Bool(t, types.TierPrimary.Searchable()).True()
	gt.Bool(t, types.TierSecondary.Searchable()).True()
	gt.Bool(t, types.TierTertiary.Searchable()).True()
	gt.Bool(t, types.TierNone.Searchable()).False()
}
