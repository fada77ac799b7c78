package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/pkg/auth"
	"github.com/angelmondragon/allergyscan/pkg/config"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/types"
)

// Identity resolves the optional bearer token. Requests without one continue anonymously;
// a token that fails validation is rejected. With no signing secret configured every
// request is anonymous.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" || !cfg.Enabled() {
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, types.Anonymous)))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid authorization header"))
				return
			}

			claims, err := auth.ParseIdentityToken(cfg, strings.TrimSpace(parts[1]))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			identity := claims.Identity()
			if !identity.Present() {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token carries no user"))
				return
			}

			if logg != nil {
				ctx = logg.WithUserID(ctx, identity.UserID)
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}
