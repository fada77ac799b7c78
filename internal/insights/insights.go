package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/angelmondragon/allergyscan/pkg/enums"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/formatting"
)

const allergensField = "identified_user_allergens"

// Request carries what the enrichment model needs to assess one label.
type Request struct {
	ScannedText   string
	AllergyTokens []string
}

// Payload is the structured health assessment returned by the enrichment model.
type Payload struct {
	HealthSummary           string   `json:"health_summary"`
	IdentifiedUserAllergens TextList `json:"identified_user_allergens"`
	ActionableHealthTips    TextList `json:"actionable_health_tips"`
	BoycottSuggestion       string   `json:"boycott_suggestion"`
	HalalStatus             string   `json:"halal_status"`
	AgeFactorNotes          string   `json:"age_factor_notes"`
}

// TextList decodes either a JSON array of strings or a single string.
type TextList []string

func (l *TextList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = TextList{}
		return nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		out := TextList{}
		for _, part := range strings.Split(single, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*l = TextList(many)
	return nil
}

// DecodePayload parses model output. The output must be a JSON object carrying a non-null
// identified_user_allergens field; anything else is CodeMalformed with the raw text kept.
func DecodePayload(text string) (*Payload, error) {
	fields, err := formatting.Parse[map[string]json.RawMessage](text)
	if err != nil {
		return nil, malformed(err, text, "parse enrichment payload")
	}
	if fields == nil {
		return nil, malformed(errors.New("payload is null"), text, "enrichment payload has unexpected shape")
	}
	raw, ok := fields[allergensField]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, malformed(errors.New("missing "+allergensField), text, "enrichment payload has unexpected shape")
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, malformed(err, text, "parse enrichment payload")
	}
	var payload Payload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return nil, malformed(err, text, "parse enrichment payload")
	}
	return &payload, nil
}

func malformed(err error, raw, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeMalformed, err, message).WithDetails(MalformedDetails{Raw: raw})
}

// Enricher is the LLM collaborator.
type Enricher interface {
	Enrich(ctx context.Context, req Request) (*Payload, error)
}

// MalformedDetails is attached to CodeMalformed errors so the raw model output survives.
type MalformedDetails struct {
	Raw string `json:"raw"`
}

// Result is the enrichment outcome for one scan. State selects which fields are meaningful:
// Payload for succeeded, Reason and Raw for degraded.
type Result struct {
	State   enums.InsightState   `json:"state"`
	Payload *Payload             `json:"payload,omitempty"`
	Reason  enums.DegradedReason `json:"reason,omitempty"`
	Raw     string               `json:"raw_response,omitempty"`
	Err     error                `json:"-"`
}

func NotRequested() Result {
	return Result{State: enums.InsightNotRequested}
}

func Pending() Result {
	return Result{State: enums.InsightPending}
}

func Succeeded(payload *Payload) Result {
	return Result{State: enums.InsightSucceeded, Payload: payload}
}

func Degraded(reason enums.DegradedReason, raw string, err error) Result {
	return Result{State: enums.InsightDegraded, Reason: reason, Raw: raw, Err: err}
}

// Usable reports whether the result carries an authoritative allergen list.
func (r Result) Usable() bool {
	return r.State == enums.InsightSucceeded && r.Payload != nil && r.Payload.IdentifiedUserAllergens != nil
}

// Evaluate calls the enricher and folds every failure mode into a Result. It never returns
// an error; callers decide how to surface a degraded insight.
func Evaluate(ctx context.Context, enricher Enricher, req Request) Result {
	if enricher == nil {
		return NotRequested()
	}
	payload, err := enricher.Enrich(ctx, req)
	if err != nil {
		return classify(ctx, err)
	}
	if payload == nil {
		return Degraded(enums.DegradedMalformed, "", pkgerrors.New(pkgerrors.CodeMalformed, "enrichment returned no payload"))
	}
	if payload.IdentifiedUserAllergens == nil {
		return Degraded(enums.DegradedMalformed, "", pkgerrors.New(pkgerrors.CodeMalformed, "enrichment payload has no allergen list"))
	}
	return Succeeded(payload)
}

func classify(ctx context.Context, err error) Result {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeMalformed {
		raw := ""
		if details, ok := typed.Details().(MalformedDetails); ok {
			raw = details.Raw
		}
		return Degraded(enums.DegradedMalformed, raw, err)
	}
	if isTimeout(ctx, err) {
		return Degraded(enums.DegradedTimeout, "", err)
	}
	return Degraded(enums.DegradedUnavailable, "", err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
