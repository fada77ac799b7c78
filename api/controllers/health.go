package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/pkg/config"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AllergyScan-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency. Nil pingers are reported as disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AllergyScan-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var mu sync.Mutex
		status := map[string]string{}
		var failed []string
		g, gctx := errgroup.WithContext(ctx)
		for name, pinger := range checks {
			if pinger == nil {
				mu.Lock()
				status[name] = "disabled"
				mu.Unlock()
				continue
			}
			g.Go(func() error {
				err := pinger.Ping(gctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logg.WarnErr(logg.WithField(ctx, "dependency", name), "health.ready.failed", err)
					status[name] = "down"
					failed = append(failed, name)
					return nil
				}
				status[name] = "up"
				return nil
			})
		}
		_ = g.Wait()

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(status))
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
