package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/internal/session"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

const DeviceIDHeader = "X-Device-Id"

const maxDeviceIDLength = 128

// SessionSource resolves the per-device session.
type SessionSource interface {
	Get(ctx context.Context, deviceID string) (*session.Session, error)
}

// Device requires the X-Device-Id header and attaches that device's session.
func Device(sessions SessionSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
			if deviceID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-Device-Id header required"))
				return
			}
			if len(deviceID) > maxDeviceIDLength || strings.ContainsAny(deviceID, ":/ ") {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid X-Device-Id header"))
				return
			}

			if logg != nil {
				ctx = logg.WithDeviceID(ctx, deviceID)
			}

			sess, err := sessions.Get(ctx, deviceID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
		})
	}
}
