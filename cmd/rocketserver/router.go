package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/adimail/rocket-landing-rl/internal/applog"
	"github.com/adimail/rocket-landing-rl/internal/observability"
	"github.com/adimail/rocket-landing-rl/internal/policy"
	"github.com/adimail/rocket-landing-rl/internal/session"
	"github.com/adimail/rocket-landing-rl/internal/simulation"
)

// newRouter wires one chi router serving the websocket simulation
// endpoint, prometheus scrape endpoint, and a health probe. Every
// accepted websocket connection gets its own simulation.Controller, the
// one-controller-per-connection model spec §5 assumes.
func newRouter(rc resolvedConfig, pol policy.Policy, metrics *observability.Metrics, logsDir, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws/simulate", func(w http.ResponseWriter, r *http.Request) {
		sessionLogger := applog.NewLogger("info", applog.EpisodePath(logsDir, time.Now().Format("20060102-150405")))
		controller := simulation.New(rc.numRockets, rc.physics, rc.sampler, rc.reward, rc.simulation, pol, sessionLogger, metrics)

		client, err := session.Upgrade(w, r, controller, rc.numRockets, sessionLogger)
		if err != nil {
			logrus.WithError(err).Warn("websocket upgrade failed")
			return
		}
		client.SendInitial()
		client.Run()
	})

	if staticDir != "" {
		fs := http.FileServer(http.Dir(staticDir))
		r.Handle("/*", fs)
	}

	return r
}
