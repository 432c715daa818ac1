package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/police-records/registry/internal/cases"
	"github.com/police-records/registry/internal/jurisdiction"
	"github.com/police-records/registry/internal/observability"
	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/platform/httpx"
	"github.com/police-records/registry/internal/stations"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	JurisdictionHandler *jurisdiction.Handler
	PersonnelHandler    *personnel.Handler
	StationsHandler     *stations.Handler
	CasesHandler        *cases.Handler
	Database            Pinger
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with registry defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", healthz(params.Database))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.JurisdictionHandler != nil {
			params.JurisdictionHandler.MountRoutes(r)
		}
		if params.PersonnelHandler != nil {
			params.PersonnelHandler.MountRoutes(r)
		}
		if params.StationsHandler != nil {
			params.StationsHandler.MountRoutes(r)
		}
		if params.CasesHandler != nil {
			params.CasesHandler.MountRoutes(r)
		}
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
