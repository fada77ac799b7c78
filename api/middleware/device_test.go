package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/allergyscan/internal/session"
)

type fakeSessions struct {
	calls []string
}

func (f *fakeSessions) Get(_ context.Context, deviceID string) (*session.Session, error) {
	f.calls = append(f.calls, deviceID)
	return &session.Session{DeviceID: deviceID}, nil
}

func TestDeviceRequiresHeader(t *testing.T) {
	sessions := &fakeSessions{}
	rec := httptest.NewRecorder()
	Device(sessions, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(sessions.calls) != 0 {
		t.Fatalf("registry should not be consulted")
	}
}

func TestDeviceRejectsMalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.Header.Set(DeviceIDHeader, "a:b")
	rec := httptest.NewRecorder()
	Device(&fakeSessions{}, nil)(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeviceAttachesSession(t *testing.T) {
	sessions := &fakeSessions{}
	var gotID string
	var gotSession *session.Session
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = DeviceIDFromContext(r.Context())
		gotSession = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.Header.Set(DeviceIDHeader, "  phone-1 ")
	rec := httptest.NewRecorder()
	Device(sessions, nil)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID != "phone-1" || gotSession == nil || gotSession.DeviceID != "phone-1" {
		t.Fatalf("unexpected session %q %+v", gotID, gotSession)
	}
}
