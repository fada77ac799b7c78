package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/internal/goals"
	"github.com/angelmondragon/allergyscan/internal/insights"
	"github.com/angelmondragon/allergyscan/internal/ocr"
	"github.com/angelmondragon/allergyscan/internal/scans"
	"github.com/angelmondragon/allergyscan/pkg/enums"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/metrics"
	"github.com/angelmondragon/allergyscan/pkg/types"
)

const defaultCallTimeout = 15 * time.Second

// Request starts one run. Identity and Profile are fixed for the whole run.
type Request struct {
	Image    []byte
	ImageRef string
	Identity types.Identity
	Profile  allergens.Profile
}

// Deps wires an Orchestrator.
type Deps struct {
	OCR               ocr.Recognizer
	Enricher          insights.Enricher
	Coordinator       *scans.Coordinator
	Goals             *goals.Tracker
	Metrics           *metrics.PipelineMetrics
	Logger            *logger.Logger
	OCRTimeout        time.Duration
	EnrichmentTimeout time.Duration
	Now               func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers obs for every event.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.addObserver(obs)
		}
	}
}

type subscription struct {
	id  uint64
	obs Observer
}

// Orchestrator sequences image → text → match → insight → persist, one run at a time.
type Orchestrator struct {
	ocr         ocr.Recognizer
	enricher    insights.Enricher
	coordinator *scans.Coordinator
	goals       *goals.Tracker
	metrics     *metrics.PipelineMetrics
	logg        *logger.Logger
	ocrTimeout  time.Duration
	llmTimeout  time.Duration
	now         func() time.Time

	mu          sync.Mutex
	state       enums.PipelineState
	lastOutcome *Outcome
	lastErr     error
	observers   []subscription
	nextObsID   uint64
}

// New builds an idle orchestrator. Enricher and Goals are optional.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.OCR == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ocr recognizer required")
	}
	if deps.Coordinator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scan coordinator required")
	}
	o := &Orchestrator{
		ocr:         deps.OCR,
		enricher:    deps.Enricher,
		coordinator: deps.Coordinator,
		goals:       deps.Goals,
		metrics:     deps.Metrics,
		logg:        deps.Logger,
		ocrTimeout:  deps.OCRTimeout,
		llmTimeout:  deps.EnrichmentTimeout,
		now:         deps.Now,
		state:       enums.PipelineIdle,
	}
	if o.logg == nil {
		o.logg = logger.Discard()
	}
	if o.ocrTimeout <= 0 {
		o.ocrTimeout = defaultCallTimeout
	}
	if o.llmTimeout <= 0 {
		o.llmTimeout = defaultCallTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Subscribe registers obs and returns a func that removes it.
func (o *Orchestrator) Subscribe(obs Observer) func() {
	if obs == nil {
		return func() {}
	}
	o.mu.Lock()
	id := o.addObserver(obs)
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.observers = slices.DeleteFunc(o.observers, func(s subscription) bool { return s.id == id })
	}
}

// addObserver appends obs under a fresh id. Callers hold mu or own o exclusively.
func (o *Orchestrator) addObserver(obs Observer) uint64 {
	o.nextObsID++
	o.observers = append(o.observers, subscription{id: o.nextObsID, obs: obs})
	return o.nextObsID
}

func (o *Orchestrator) State() enums.PipelineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the state together with the last outcome or failure.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{State: o.state, Outcome: o.lastOutcome, Error: o.lastErr}
}

// Dismiss returns a completed run to idle.
func (o *Orchestrator) Dismiss() error {
	return o.settle(enums.PipelineComplete, "dismiss")
}

// Acknowledge returns a failed run to idle.
func (o *Orchestrator) Acknowledge() error {
	return o.settle(enums.PipelineError, "acknowledge")
}

func (o *Orchestrator) settle(expected enums.PipelineState, action string) error {
	o.mu.Lock()
	from := o.state
	switch from {
	case enums.PipelineIdle:
		o.mu.Unlock()
		return nil
	case expected:
		o.state = enums.PipelineIdle
		o.lastOutcome = nil
		o.lastErr = nil
		o.mu.Unlock()
		o.emit(Event{From: from, To: enums.PipelineIdle, At: o.now()})
		return nil
	default:
		o.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s while %s", action, from))
	}
}

// Run processes one image. Only an OCR failure makes it fail; every later problem is
// reported in Outcome.Warnings.
func (o *Orchestrator) Run(ctx context.Context, req Request) (out *Outcome, err error) {
	if len(req.Image) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image required")
	}
	if err := o.begin(); err != nil {
		o.metrics.IncRun("rejected")
		return nil, err
	}

	ctx = o.logg.WithUserID(ctx, req.Identity.UserID)
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("scan pipeline panic: %v", r))
			o.logg.Error(ctx, "pipeline.panic", err)
			o.fail(err, "panic")
			out = nil
		}
	}()

	o.transition(enums.PipelineCapturing, enums.PipelineExtracting, nil)
	text, err := o.extract(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	o.transition(enums.PipelineExtracting, enums.PipelineEnriching, nil)
	ruleHits := allergens.Match(text, req.Profile.Tokens)
	o.transition(enums.PipelineEnriching, enums.PipelineEnriching, &Preliminary{
		RuleHits:      ruleHits,
		Determination: insights.Reconcile(req.Profile, ruleHits, insights.Pending()),
		Insight:       insights.Pending(),
	})

	var warnings []Warning
	result := o.enrich(ctx, text, req.Profile)
	if result.State == enums.InsightDegraded {
		warnings = append(warnings, Warning{
			Component: "enrichment",
			Reason:    string(result.Reason),
			Message:   errMessage(result.Err),
		})
	}
	determination := insights.Reconcile(req.Profile, ruleHits, result)

	o.transition(enums.PipelineEnriching, enums.PipelinePersisting, nil)
	persisted, persistWarnings := o.persist(ctx, req, text, determination)
	warnings = append(warnings, persistWarnings...)

	outcome := &Outcome{
		Record:        persisted.Record,
		Write:         persisted.Write,
		Determination: determination,
		Insight:       result,
		Unseen:        persisted.Feed.UnseenCount,
		Warnings:      warnings,
	}
	if o.goals != nil {
		outcome.Progress = o.goals.Progress()
	}
	if outcome.Warnings == nil {
		outcome.Warnings = []Warning{}
	}

	o.mu.Lock()
	o.state = enums.PipelineComplete
	o.lastOutcome = outcome
	o.mu.Unlock()
	o.emit(Event{From: enums.PipelinePersisting, To: enums.PipelineComplete, At: o.now()})

	o.metrics.IncRun("complete")
	o.logg.Info(o.logg.WithFields(ctx, map[string]any{
		"scan_id":  outcome.Record.ID,
		"status":   determination.Status,
		"detected": outcome.Record.Detected,
		"warnings": len(outcome.Warnings),
		"remote":   outcome.Write.Remote(),
		"insight":  result.State,
	}), "pipeline.complete")
	return outcome, nil
}

// begin claims the pipeline. A finished or failed previous run is dismissed implicitly.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	from := o.state
	if from.InFlight() {
		o.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "a scan is already in progress")
	}
	o.state = enums.PipelineCapturing
	o.lastOutcome = nil
	o.lastErr = nil
	o.mu.Unlock()

	now := o.now()
	if from != enums.PipelineIdle {
		o.emit(Event{From: from, To: enums.PipelineIdle, At: now})
	}
	o.emit(Event{From: enums.PipelineIdle, To: enums.PipelineCapturing, At: now})
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, image []byte) (string, error) {
	ocrCtx, cancel := context.WithTimeout(ctx, o.ocrTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.ocr.Recognize(ocrCtx, image)
	o.metrics.ObserveStage("ocr", time.Since(start))

	switch {
	case err != nil:
		reason := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ocrCtx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		o.metrics.IncDegraded("ocr", reason)
		wrapped := err
		if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			wrapped = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "text recognition failed")
		}
		o.logg.WarnErr(ctx, "pipeline.ocr_failed", err)
		o.fail(wrapped, "ocr_failed")
		return "", wrapped
	case !res.Found:
		noText := pkgerrors.New(pkgerrors.CodeNoTextFound, "no text found in image")
		o.logg.Info(ctx, "pipeline.no_text")
		o.fail(noText, "no_text")
		return "", noText
	}
	return res.Text, nil
}

func (o *Orchestrator) enrich(ctx context.Context, text string, profile allergens.Profile) insights.Result {
	if o.enricher == nil {
		return insights.NotRequested()
	}
	llmCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	start := time.Now()
	result := insights.Evaluate(llmCtx, o.enricher, insights.Request{
		ScannedText:   text,
		AllergyTokens: profile.Tokens,
	})
	o.metrics.ObserveStage("enrichment", time.Since(start))

	if result.State == enums.InsightDegraded {
		o.metrics.IncDegraded("enrichment", string(result.Reason))
		o.logg.WarnErr(o.logg.WithField(ctx, "reason", result.Reason), "pipeline.enrichment_degraded", result.Err)
	}
	return result
}

// persist runs detached from ctx so that a caller going away cannot interrupt the writes.
func (o *Orchestrator) persist(ctx context.Context, req Request, text string, det insights.Determination) (*scans.Persisted, []Warning) {
	start := time.Now()
	persisted, err := o.coordinator.Persist(context.WithoutCancel(ctx), scans.Draft{
		Identity:  req.Identity,
		Text:      text,
		ImageRef:  req.ImageRef,
		Allergens: det.Allergens,
		ScannedAt: o.now(),
	})
	o.metrics.ObserveStage("persist", time.Since(start))

	var warnings []Warning
	if err != nil {
		warnings = append(warnings, Warning{Component: "local_cache", Reason: "local_storage", Message: errMessage(err)})
	}
	if local, ok := persisted.Write.(scans.WrittenLocalOnly); ok && local.RemoteErr != nil {
		warnings = append(warnings, Warning{Component: "remote_store", Reason: "unavailable", Message: errMessage(local.RemoteErr)})
	}
	return persisted, warnings
}

func (o *Orchestrator) fail(err error, outcome string) {
	o.mu.Lock()
	from := o.state
	o.state = enums.PipelineError
	o.lastErr = err
	o.mu.Unlock()

	o.metrics.IncRun(outcome)
	o.emit(Event{From: from, To: enums.PipelineError, At: o.now()})
}

func (o *Orchestrator) transition(from, to enums.PipelineState, pre *Preliminary) {
	o.mu.Lock()
	o.state = to
	o.mu.Unlock()
	o.emit(Event{From: from, To: to, At: o.now(), Preliminary: pre})
}

// emit delivers ev to every observer. A panicking observer is logged and skipped.
func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	observers := make([]Observer, 0, len(o.observers))
	for _, sub := range o.observers {
		observers = append(observers, sub.obs)
	}
	o.mu.Unlock()

	for _, obs := range observers {
		o.deliver(obs, ev)
	}
}

func (o *Orchestrator) deliver(obs Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logg.Warn(o.logg.WithFields(context.Background(), map[string]any{
				"to":    ev.To,
				"panic": fmt.Sprint(r),
			}), "pipeline.observer_panic")
		}
	}()
	obs(ev)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
