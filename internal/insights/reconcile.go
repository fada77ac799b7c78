package insights

import (
	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/pkg/enums"
)

// Determination is the reconciled allergen verdict for a scan.
type Determination struct {
	Status             enums.DeterminationStatus `json:"status"`
	Allergens          []string                  `json:"allergens"`
	RuleHits           []string                  `json:"rule_hits"`
	InsightAllergens   []string                  `json:"insight_allergens"`
	Flagged            bool                      `json:"flagged"`
	InsightUnavailable bool                      `json:"insight_unavailable"`
}

// Reconcile decides the authoritative allergen list. A successful insight overrides the
// rule hits; anything else falls back to them.
func Reconcile(profile allergens.Profile, ruleHits []string, result Result) Determination {
	det := Determination{
		Allergens:          []string{},
		RuleHits:           copyList(ruleHits),
		InsightAllergens:   []string{},
		InsightUnavailable: !result.Usable(),
	}

	if !profile.Configured() {
		det.Status = enums.DeterminationNotConfigured
		det.RuleHits = []string{}
		return det
	}

	if result.Usable() {
		insight := allergens.NormalizeTokens(result.Payload.IdentifiedUserAllergens)
		det.InsightAllergens = insight
		det.Allergens = copyList(insight)
		det.Flagged = len(insight) > 0
		det.Status = enums.DeterminationEmpty
		if det.Flagged {
			det.Status = enums.DeterminationFlagged
		}
		return det
	}

	det.Status = enums.DeterminationEnrichmentUnavailable
	det.Allergens = copyList(ruleHits)
	det.Flagged = len(det.Allergens) > 0
	return det
}

func copyList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
