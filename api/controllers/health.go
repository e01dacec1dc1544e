package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/skillquest-app/skillquest-backend/api/responses"
	"github.com/skillquest-app/skillquest-backend/pkg/config"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SkillQuest-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every wired dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		w.Header().Set("X-SkillQuest-Env", cfg.App.Env)

		deps := map[string]pinger{"db": dbP, "redis": redisP}
		checks := make(map[string]string, len(deps))
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				healthy = false
				checks[name] = "unreachable"
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()})
					logg.Warn(logCtx, "health.ready.dependency_failed")
				}
				continue
			}
			checks[name] = "ok"
		}

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
