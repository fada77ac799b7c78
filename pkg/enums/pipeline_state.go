package enums

import "fmt"

// PipelineState is the lifecycle position of a scan run.
type PipelineState string

const (
	PipelineIdle       PipelineState = "idle"
	PipelineCapturing  PipelineState = "capturing"
	PipelineExtracting PipelineState = "extracting"
	PipelineEnriching  PipelineState = "enriching"
	PipelinePersisting PipelineState = "persisting"
	PipelineComplete   PipelineState = "complete"
	PipelineError      PipelineState = "error"
)

var validPipelineStates = []PipelineState{
	PipelineIdle,
	PipelineCapturing,
	PipelineExtracting,
	PipelineEnriching,
	PipelinePersisting,
	PipelineComplete,
	PipelineError,
}

// IsValid checks whether the state matches the canonical enum.
func (s PipelineState) IsValid() bool {
	for _, candidate := range validPipelineStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// InFlight reports whether a run is currently occupying the pipeline.
func (s PipelineState) InFlight() bool {
	switch s {
	case PipelineCapturing, PipelineExtracting, PipelineEnriching, PipelinePersisting:
		return true
	default:
		return false
	}
}

// ParsePipelineState converts raw strings into PipelineState.
func ParsePipelineState(value string) (PipelineState, error) {
	for _, candidate := range validPipelineStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pipeline state %q", value)
}
