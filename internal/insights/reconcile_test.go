package insights

import (
	"errors"
	"reflect"
	"testing"

	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/pkg/enums"
	"github.com/angelmondragon/allergyscan/pkg/types"
)

func TestReconcile(t *testing.T) {
	configured := allergens.ParseProfile(types.Anonymous, "peanut, milk")
	empty := allergens.ParseProfile(types.Anonymous, "")

	cases := []struct {
		name        string
		profile     allergens.Profile
		ruleHits    []string
		result      Result
		status      enums.DeterminationStatus
		allergens   []string
		insight     []string
		flagged     bool
		unavailable bool
	}{
		{
			name:        "insight overrides rule hits",
			profile:     configured,
			ruleHits:    []string{},
			result:      Succeeded(&Payload{IdentifiedUserAllergens: TextList{" Milk ", "casein", "milk"}}),
			status:      enums.DeterminationFlagged,
			allergens:   []string{"milk", "casein"},
			insight:     []string{"milk", "casein"},
			flagged:     true,
			unavailable: false,
		},
		{
			name:        "insight says none even with rule hits",
			profile:     configured,
			ruleHits:    []string{"peanut"},
			result:      Succeeded(&Payload{IdentifiedUserAllergens: TextList{}}),
			status:      enums.DeterminationEmpty,
			allergens:   []string{},
			insight:     []string{},
			flagged:     false,
			unavailable: false,
		},
		{
			name:        "degraded falls back to rule hits",
			profile:     configured,
			ruleHits:    []string{"peanut"},
			result:      Degraded(enums.DegradedTimeout, "", errors.New("deadline")),
			status:      enums.DeterminationEnrichmentUnavailable,
			allergens:   []string{"peanut"},
			insight:     []string{},
			flagged:     true,
			unavailable: true,
		},
		{
			name:        "not requested without rule hits",
			profile:     configured,
			ruleHits:    []string{},
			result:      NotRequested(),
			status:      enums.DeterminationEnrichmentUnavailable,
			allergens:   []string{},
			insight:     []string{},
			flagged:     false,
			unavailable: true,
		},
		{
			name:        "pending is treated as unavailable",
			profile:     configured,
			ruleHits:    []string{"milk"},
			result:      Pending(),
			status:      enums.DeterminationEnrichmentUnavailable,
			allergens:   []string{"milk"},
			insight:     []string{},
			flagged:     true,
			unavailable: true,
		},
		{
			name:        "profile not configured ignores insight",
			profile:     empty,
			ruleHits:    []string{},
			result:      Succeeded(&Payload{IdentifiedUserAllergens: TextList{"gluten"}}),
			status:      enums.DeterminationNotConfigured,
			allergens:   []string{},
			insight:     []string{},
			flagged:     false,
			unavailable: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det := Reconcile(tc.profile, tc.ruleHits, tc.result)
			if det.Status != tc.status {
				t.Fatalf("status = %s, want %s", det.Status, tc.status)
			}
			if !reflect.DeepEqual(det.Allergens, tc.allergens) {
				t.Fatalf("allergens = %v, want %v", det.Allergens, tc.allergens)
			}
			if !reflect.DeepEqual(det.InsightAllergens, tc.insight) {
				t.Fatalf("insight allergens = %v, want %v", det.InsightAllergens, tc.insight)
			}
			if det.Flagged != tc.flagged {
				t.Fatalf("flagged = %v, want %v", det.Flagged, tc.flagged)
			}
			if det.InsightUnavailable != tc.unavailable {
				t.Fatalf("insight unavailable = %v, want %v", det.InsightUnavailable, tc.unavailable)
			}
			if det.Flagged != (len(det.Allergens) > 0) {
				t.Fatalf("flagged must equal non-empty authoritative list")
			}
		})
	}
}

func TestReconcileDoesNotAliasRuleHits(t *testing.T) {
	hits := []string{"peanut"}
	det := Reconcile(allergens.ParseProfile(types.Anonymous, "peanut"), hits, NotRequested())
	det.Allergens[0] = "mutated"
	if hits[0] != "peanut" {
		t.Fatal("reconcile must copy rule hits")
	}
}
