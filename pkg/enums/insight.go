package enums

import "fmt"

// InsightState tracks the enrichment outcome attached to a scan.
type InsightState string

const (
	InsightNotRequested InsightState = "not_requested"
	InsightPending      InsightState = "pending"
	InsightSucceeded    InsightState = "succeeded"
	InsightDegraded     InsightState = "degraded"
)

var validInsightStates = []InsightState{
	InsightNotRequested,
	InsightPending,
	InsightSucceeded,
	InsightDegraded,
}

// IsValid checks whether the state matches the canonical enum.
func (s InsightState) IsValid() bool {
	for _, candidate := range validInsightStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInsightState converts raw strings into InsightState.
func ParseInsightState(value string) (InsightState, error) {
	for _, candidate := range validInsightStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid insight state %q", value)
}

// DegradedReason explains why enrichment produced no usable payload.
type DegradedReason string

const (
	DegradedUnavailable DegradedReason = "unavailable"
	DegradedTimeout     DegradedReason = "timeout"
	DegradedMalformed   DegradedReason = "malformed"
)

var validDegradedReasons = []DegradedReason{
	DegradedUnavailable,
	DegradedTimeout,
	DegradedMalformed,
}

// IsValid checks whether the reason matches the canonical enum.
func (r DegradedReason) IsValid() bool {
	for _, candidate := range validDegradedReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseDegradedReason converts raw strings into DegradedReason.
func ParseDegradedReason(value string) (DegradedReason, error) {
	for _, candidate := range validDegradedReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid degraded reason %q", value)
}
