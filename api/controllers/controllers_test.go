package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/allergyscan/api/middleware"
	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/internal/localcache"
	"github.com/angelmondragon/allergyscan/internal/ocr"
	"github.com/angelmondragon/allergyscan/internal/session"
	"github.com/angelmondragon/allergyscan/pkg/config"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

type staticOCR struct {
	text string
	err  error
}

func (s staticOCR) Recognize(ctx context.Context, image []byte) (ocr.Result, error) {
	if s.err != nil {
		return ocr.Result{}, s.err
	}
	return ocr.NewResult(s.text), nil
}

func newTestSession(t *testing.T, recognizer ocr.Recognizer) *session.Session {
	t.Helper()
	reg, err := session.NewRegistry(session.Deps{
		Stores: session.NamespacedStores(localcache.NewMemoryStore()),
		OCR:    recognizer,
		Logger: logger.Discard(),
		Limits: session.Limits{HistoryCap: 10, FeedCap: 20, DailyGoal: 5},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	sess, err := reg.Get(context.Background(), "device-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess
}

func sessionRequest(sess *session.Session, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithSession(req.Context(), sess)
	return req.WithContext(ctx)
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v (%s)", err, resp.Body.String())
	}
}

func decodeErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return envelope.Error.Code
}

func imageBody(ref string) string {
	payload := map[string]string{"image_base64": base64.StdEncoding.EncodeToString([]byte("fake-png"))}
	if ref != "" {
		payload["image_ref"] = ref
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func saveProfile(t *testing.T, sess *session.Session, body string) {
	t.Helper()
	resp := httptest.NewRecorder()
	PutAllergyProfile(logger.Discard())(resp, sessionRequest(sess, http.MethodPut, "/api/v1/profile/allergies", body))
	if resp.Code != http.StatusOK {
		t.Fatalf("save profile status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSubmitScanFlagsProfileAllergens(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "Ingredients: wheat flour, MILK powder"})
	saveProfile(t, sess, `{"allergies":"milk, peanut"}`)

	resp := httptest.NewRecorder()
	SubmitScan(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("photos/1.jpg")))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Record struct {
			ID        string   `json:"id"`
			ImageRef  string   `json:"image_ref"`
			Allergens []string `json:"allergens"`
			Detected  bool     `json:"detected"`
		} `json:"record"`
		Write struct {
			RecordID string `json:"record_id"`
			Remote   bool   `json:"remote"`
		} `json:"write"`
		Unseen   int `json:"unseen"`
		Progress struct {
			Count int `json:"count"`
		} `json:"progress"`
	}
	decodeData(t, resp, &body)

	if !body.Record.Detected || len(body.Record.Allergens) != 1 || body.Record.Allergens[0] != "milk" {
		t.Fatalf("unexpected record %+v", body.Record)
	}
	if body.Record.ImageRef != "photos/1.jpg" {
		t.Fatalf("image ref not kept: %q", body.Record.ImageRef)
	}
	if body.Write.Remote || body.Write.RecordID != body.Record.ID {
		t.Fatalf("anonymous scans are local only: %+v", body.Write)
	}
	if body.Unseen != 1 || body.Progress.Count != 1 {
		t.Fatalf("expected unseen 1 and progress 1, got %d %d", body.Unseen, body.Progress.Count)
	}
}

func TestSubmitScanValidation(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "x"})
	cases := map[string]string{
		"missing image": `{}`,
		"bad base64":    `{"image_base64":"%%%"}`,
		"unknown field": `{"image_base64":"aGk=","extra":true}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			SubmitScan(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/scans", body))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
}

func TestSubmitScanNoTextFound(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "   "})
	resp := httptest.NewRecorder()
	SubmitScan(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if sess.History.Len() != 0 {
		t.Fatal("failed scans must not reach history")
	}

	state := httptest.NewRecorder()
	PipelineState(logger.Discard())(state, sessionRequest(sess, http.MethodGet, "/api/v1/pipeline/state", ""))
	var snap struct {
		State string `json:"state"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeData(t, state, &snap)
	if snap.State != "error" || snap.Error.Code != "NO_TEXT_FOUND" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	ack := httptest.NewRecorder()
	AcknowledgePipeline(logger.Discard())(ack, sessionRequest(sess, http.MethodPost, "/api/v1/pipeline/acknowledge", ""))
	if ack.Code != http.StatusOK {
		t.Fatalf("acknowledge status %d", ack.Code)
	}
	if sess.Pipeline.State() != "idle" {
		t.Fatalf("expected idle, got %s", sess.Pipeline.State())
	}
}

func TestSubmitScanOCRFailure(t *testing.T) {
	sess := newTestSession(t, staticOCR{err: errors.New("ocr down")})
	resp := httptest.NewRecorder()
	SubmitScan(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestDismissFromIdleIsNoop(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "x"})
	resp := httptest.NewRecorder()
	DismissPipeline(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/pipeline/dismiss", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAcknowledgeAfterCompleteConflicts(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "plain rice"})
	SubmitScan(logger.Discard())(httptest.NewRecorder(), sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))

	resp := httptest.NewRecorder()
	AcknowledgePipeline(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/pipeline/acknowledge", ""))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestHistoryAndHighlight(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "Sugar, peanut oil and salt"})
	saveProfile(t, sess, `{"allergies":["Peanut"]}`)
	for i := 0; i < 3; i++ {
		SubmitScan(logger.Discard())(httptest.NewRecorder(), sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))
	}

	resp := httptest.NewRecorder()
	ScanHistory(logger.Discard())(resp, sessionRequest(sess, http.MethodGet, "/api/v1/scans/history?limit=2", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("history status %d", resp.Code)
	}
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Cap int `json:"cap"`
	}
	decodeData(t, resp, &list)
	if len(list.Items) != 2 || list.Cap != 10 {
		t.Fatalf("unexpected history %+v", list)
	}

	req := addRouteParam(sessionRequest(sess, http.MethodGet, "/api/v1/scans/history/"+list.Items[0].ID+"/highlight", ""), "scanId", list.Items[0].ID)
	hl := httptest.NewRecorder()
	ScanHighlight(logger.Discard())(hl, req)
	if hl.Code != http.StatusOK {
		t.Fatalf("highlight status %d", hl.Code)
	}
	var spans struct {
		Spans []allergens.Span `json:"spans"`
	}
	decodeData(t, hl, &spans)
	want := []allergens.Span{{Text: "Sugar, "}, {Text: "peanut", IsMatch: true}, {Text: " oil and salt"}}
	if len(spans.Spans) != len(want) {
		t.Fatalf("unexpected spans %+v", spans.Spans)
	}
	for i := range want {
		if spans.Spans[i] != want[i] {
			t.Fatalf("span %d: want %+v got %+v", i, want[i], spans.Spans[i])
		}
	}

	missing := httptest.NewRecorder()
	ScanHighlight(logger.Discard())(missing, addRouteParam(sessionRequest(sess, http.MethodGet, "/", ""), "scanId", "nope"))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", missing.Code)
	}
}

func TestHistoryLimitOutOfRange(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "x"})
	resp := httptest.NewRecorder()
	ScanHistory(logger.Discard())(resp, sessionRequest(sess, http.MethodGet, "/api/v1/scans/history?limit=50", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRestoreRequiresIdentity(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "x"})
	resp := httptest.NewRecorder()
	RestoreScanHistory(logger.Discard())(resp, sessionRequest(sess, http.MethodPost, "/api/v1/scans/history/restore", ""))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestClearHistoryLocalOnly(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "oats"})
	SubmitScan(logger.Discard())(httptest.NewRecorder(), sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))

	resp := httptest.NewRecorder()
	ClearScanHistory(logger.Discard())(resp, sessionRequest(sess, http.MethodDelete, "/api/v1/scans/history", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if sess.History.Len() != 0 {
		t.Fatalf("expected empty history, got %d", sess.History.Len())
	}
}

func TestNotificationsFlow(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "soy lecithin"})
	for i := 0; i < 2; i++ {
		SubmitScan(logger.Discard())(httptest.NewRecorder(), sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))
		sess.Pipeline.Dismiss()
	}

	type status struct {
		Feed        []map[string]any `json:"feed"`
		UnseenCount int              `json:"unseen_count"`
		Unseen      bool             `json:"unseen"`
	}

	list := httptest.NewRecorder()
	ListNotifications(logger.Discard())(list, sessionRequest(sess, http.MethodGet, "/api/v1/notifications", ""))
	var before status
	decodeData(t, list, &before)
	if len(before.Feed) != 2 || before.UnseenCount != 2 || !before.Unseen {
		t.Fatalf("unexpected feed %+v", before)
	}

	seen := httptest.NewRecorder()
	MarkNotificationsSeen(logger.Discard())(seen, sessionRequest(sess, http.MethodPost, "/api/v1/notifications/seen", ""))
	var after status
	decodeData(t, seen, &after)
	if after.UnseenCount != 0 || after.Unseen {
		t.Fatalf("expected all seen, got %+v", after)
	}

	cleared := httptest.NewRecorder()
	ClearNotifications(logger.Discard())(cleared, sessionRequest(sess, http.MethodDelete, "/api/v1/notifications", ""))
	var empty status
	decodeData(t, cleared, &empty)
	if len(empty.Feed) != 0 {
		t.Fatalf("expected empty feed, got %d", len(empty.Feed))
	}
}

func TestTodayGoal(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "corn"})
	SubmitScan(logger.Discard())(httptest.NewRecorder(), sessionRequest(sess, http.MethodPost, "/api/v1/scans", imageBody("")))

	resp := httptest.NewRecorder()
	TodayGoal(logger.Discard())(resp, sessionRequest(sess, http.MethodGet, "/api/v1/goals/today", ""))
	var progress struct {
		Count     int `json:"count"`
		Goal      int `json:"goal"`
		Remaining int `json:"remaining"`
	}
	decodeData(t, resp, &progress)
	if progress.Count != 1 || progress.Goal != 5 || progress.Remaining != 4 {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestAllergyProfileRoundTrip(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "x"})
	saveProfile(t, sess, `{"allergies":" Milk ,peanut,, milk"}`)

	resp := httptest.NewRecorder()
	GetAllergyProfile(logger.Discard())(resp, sessionRequest(sess, http.MethodGet, "/api/v1/profile/allergies", ""))
	var body struct {
		Tokens     []string `json:"tokens"`
		Raw        string   `json:"raw"`
		Configured bool     `json:"configured"`
	}
	decodeData(t, resp, &body)
	if len(body.Tokens) != 2 || body.Tokens[0] != "milk" || body.Tokens[1] != "peanut" || !body.Configured {
		t.Fatalf("unexpected profile %+v", body)
	}
	if body.Raw != "milk, peanut" {
		t.Fatalf("unexpected raw %q", body.Raw)
	}
}

func TestAllergyProfileRejectsBadShape(t *testing.T) {
	sess := newTestSession(t, staticOCR{text: "x"})
	resp := httptest.NewRecorder()
	PutAllergyProfile(logger.Discard())(resp, sessionRequest(sess, http.MethodPut, "/api/v1/profile/allergies", `{"allergies":42}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestHandlersRequireDeviceContext(t *testing.T) {
	resp := httptest.NewRecorder()
	ListNotifications(logger.Discard())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	ok := httptest.NewRecorder()
	HealthReady(cfg, logger.Discard(), map[string]Pinger{"db": nil})(ok, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", ok.Code)
	}

	down := httptest.NewRecorder()
	HealthReady(cfg, logger.Discard(), map[string]Pinger{"redis": downPinger{}})(down, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if down.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", down.Code)
	}
	if code := decodeErrorCode(t, down); code != "DEPENDENCY_ERROR" {
		t.Fatalf("unexpected code %s", code)
	}
}
