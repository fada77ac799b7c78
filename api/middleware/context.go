package middleware

import (
	"context"

	"github.com/angelmondragon/allergyscan/internal/session"
	"github.com/angelmondragon/allergyscan/pkg/types"
)

type contextKey string

const (
	ctxIdentity contextKey = "identity"
	ctxDeviceID contextKey = "device_id"
	ctxSession  contextKey = "device_session"
)

// IdentityFromContext returns the caller identity, Anonymous when none was attached.
func IdentityFromContext(ctx context.Context) types.Identity {
	if ctx == nil {
		return types.Anonymous
	}
	if v, ok := ctx.Value(ctxIdentity).(types.Identity); ok {
		return v
	}
	return types.Anonymous
}

func DeviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxDeviceID).(string); ok {
		return v
	}
	return ""
}

func SessionFromContext(ctx context.Context) *session.Session {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSession).(*session.Session); ok {
		return v
	}
	return nil
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// WithSession injects the device session and its id for downstream handlers.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSession, sess)
	if sess != nil {
		ctx = context.WithValue(ctx, ctxDeviceID, sess.DeviceID)
	}
	return ctx
}
