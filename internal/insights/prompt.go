package insights

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are a food safety assistant reviewing the ingredient label of a packaged food.

Label text:
"""
%s
"""

The user is allergic to: %s.

Respond with a single JSON object and nothing else, using exactly these keys:
- "health_summary": two or three sentences on the overall healthiness of the product.
- "identified_user_allergens": array of the user's allergens that the product contains, including derivatives and synonyms (for example casein for milk). Use an empty array when none apply.
- "actionable_health_tips": array of short, practical tips.
- "boycott_suggestion": whether the user should avoid this product and why.
- "halal_status": "halal", "not halal" or "unclear", with a short reason.
- "age_factor_notes": notes for children, pregnant people or older adults.`

// BuildPrompt renders the enrichment instruction for one label.
func BuildPrompt(req Request) string {
	tokens := "none configured"
	if len(req.AllergyTokens) > 0 {
		tokens = strings.Join(req.AllergyTokens, ", ")
	}
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(req.ScannedText), tokens)
}
