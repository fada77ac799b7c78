package allergens

import (
	"strings"

	"github.com/angelmondragon/allergyscan/pkg/types"
)

// Profile is the set of allergen tokens a user has configured.
type Profile struct {
	Identity types.Identity `json:"-"`
	Tokens   []string       `json:"tokens"`
}

// ParseProfile builds a profile from a comma-delimited allergy string.
func ParseProfile(identity types.Identity, raw string) Profile {
	return NewProfile(identity, strings.Split(raw, ","))
}

// NewProfile builds a profile from a list of allergy entries.
func NewProfile(identity types.Identity, tokens []string) Profile {
	return Profile{Identity: identity, Tokens: NormalizeTokens(tokens)}
}

// NormalizeTokens trims and lowercases tokens, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// Configured reports whether the profile has at least one allergen.
func (p Profile) Configured() bool {
	return len(p.Tokens) > 0
}

// String renders the profile in its stored comma-delimited form.
func (p Profile) String() string {
	return strings.Join(p.Tokens, ", ")
}
