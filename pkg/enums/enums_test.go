package enums

import "testing"

func TestParsePipelineState(t *testing.T) {
	for _, state := range validPipelineStates {
		got, err := ParsePipelineState(string(state))
		if err != nil {
			t.Fatalf("parse %q: %v", state, err)
		}
		if got != state || !got.IsValid() {
			t.Fatalf("unexpected state %q", got)
		}
	}
	if _, err := ParsePipelineState("paused"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestPipelineStateInFlight(t *testing.T) {
	cases := map[PipelineState]bool{
		PipelineIdle:       false,
		PipelineCapturing:  true,
		PipelineExtracting: true,
		PipelineEnriching:  true,
		PipelinePersisting: true,
		PipelineComplete:   false,
		PipelineError:      false,
	}
	for state, want := range cases {
		if got := state.InFlight(); got != want {
			t.Errorf("%s.InFlight() = %v, want %v", state, got, want)
		}
	}
}

func TestParseInsightEnums(t *testing.T) {
	if _, err := ParseInsightState("succeeded"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseDegradedReason("timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseDeterminationStatus("enrichment_unavailable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DegradedReason("slow").IsValid() {
		t.Fatal("unexpected valid reason")
	}
	if _, err := ParseDeterminationStatus("maybe"); err == nil {
		t.Fatal("expected error for unknown determination")
	}
}
