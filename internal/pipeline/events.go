package pipeline

import (
	"time"

	"github.com/angelmondragon/allergyscan/internal/goals"
	"github.com/angelmondragon/allergyscan/internal/history"
	"github.com/angelmondragon/allergyscan/internal/insights"
	"github.com/angelmondragon/allergyscan/internal/scans"
	"github.com/angelmondragon/allergyscan/pkg/enums"
)

// Event is delivered to observers on every state change. A preliminary event carries the
// rule-based result while enrichment is still running; From and To are both enriching.
type Event struct {
	From        enums.PipelineState `json:"from"`
	To          enums.PipelineState `json:"to"`
	At          time.Time           `json:"at"`
	Preliminary *Preliminary        `json:"preliminary,omitempty"`
}

// Preliminary is the determination available before the insight arrives.
type Preliminary struct {
	RuleHits      []string               `json:"rule_hits"`
	Determination insights.Determination `json:"determination"`
	Insight       insights.Result        `json:"insight"`
}

// Observer receives pipeline events. It runs synchronously on the pipeline goroutine.
type Observer func(Event)

// Warning is a degraded collaborator that did not stop the run.
type Warning struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// Outcome is the result of a completed run.
type Outcome struct {
	Record        history.ScanRecord     `json:"record"`
	Write         scans.WriteResult      `json:"-"`
	Determination insights.Determination `json:"determination"`
	Insight       insights.Result        `json:"insight"`
	Progress      goals.Progress         `json:"progress"`
	Unseen        int                    `json:"unseen"`
	Warnings      []Warning              `json:"warnings"`
}

// Snapshot is the orchestrator state as shown by a status view.
type Snapshot struct {
	State   enums.PipelineState `json:"state"`
	Outcome *Outcome            `json:"outcome,omitempty"`
	Error   error               `json:"-"`
}
