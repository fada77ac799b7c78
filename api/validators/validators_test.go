package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
)

type sample struct {
	Image string   `json:"image_base64" validate:"required"`
	Ref   string   `json:"image_ref" validate:"omitempty,max=4"`
	Tags  []string `json:"tags" validate:"max=2"`
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{name: "valid", body: `{"image_base64":"aGk=","image_ref":"a.jp"}`},
		{name: "missing required", body: `{"image_ref":"x"}`, wantErr: true, wantField: "image_base64"},
		{name: "too long", body: `{"image_base64":"aGk=","image_ref":"abcdef"}`, wantErr: true, wantField: "image_ref"},
		{name: "too many entries", body: `{"image_base64":"aGk=","tags":["a","b","c"]}`, wantErr: true, wantField: "tags"},
		{name: "unknown field", body: `{"image_base64":"aGk=","nope":1}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest sample
			err := DecodeJSONBody(req, &dest)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tt.wantField == "" {
				return
			}
			details, ok := pkgerrors.As(err).Details().(map[string]string)
			if !ok || details[tt.wantField] == "" {
				t.Fatalf("expected details for %s, got %#v", tt.wantField, pkgerrors.As(err).Details())
			}
		})
	}
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	body := `{"image_base64":"` + strings.Repeat("A", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest sample
	err := DecodeJSONBody(req, &dest)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) || pkgerrors.As(err).Message() != "request body too large" {
		t.Fatalf("expected body too large, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&big=99", nil)

	if v, err := ParseQueryInt(req, "missing", 10, 1, 10); err != nil || v != 10 {
		t.Fatalf("expected default 10, got %d %v", v, err)
	}
	if v, err := ParseQueryInt(req, "limit", 10, 1, 10); err != nil || v != 5 {
		t.Fatalf("expected 5, got %d %v", v, err)
	}
	if _, err := ParseQueryInt(req, "bad", 10, 1, 10); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseQueryInt(req, "big", 10, 1, 10); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestSanitizeStringCountsRunes(t *testing.T) {
	if got := SanitizeString("  héllo wörld  ", 5); got != "héllo" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString(" keep ", 0); got != "keep" {
		t.Fatalf("unexpected %q", got)
	}
}
