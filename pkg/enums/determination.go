package enums

import "fmt"

// DeterminationStatus summarizes how a scan's authoritative allergen list was decided.
type DeterminationStatus string

const (
	DeterminationNotConfigured         DeterminationStatus = "not_configured"
	DeterminationEmpty                 DeterminationStatus = "empty"
	DeterminationFlagged               DeterminationStatus = "flagged"
	DeterminationEnrichmentUnavailable DeterminationStatus = "enrichment_unavailable"
)

var validDeterminationStatuses = []DeterminationStatus{
	DeterminationNotConfigured,
	DeterminationEmpty,
	DeterminationFlagged,
	DeterminationEnrichmentUnavailable,
}

// IsValid checks whether the status matches the canonical enum.
func (d DeterminationStatus) IsValid() bool {
	for _, candidate := range validDeterminationStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeterminationStatus converts raw strings into DeterminationStatus.
func ParseDeterminationStatus(value string) (DeterminationStatus, error) {
	for _, candidate := range validDeterminationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid determination status %q", value)
}
