// Command rocketserver hosts the rocket-landing simulation over
// websockets: one simulation.Controller per connection, optional
// policy-backed agent control, and a prometheus scrape endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/adimail/rocket-landing-rl/internal/config"
	"github.com/adimail/rocket-landing-rl/internal/observability"
	"github.com/adimail/rocket-landing-rl/internal/policy"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the decoded simulation config")
	addr := flag.String("addr", ":8080", "listen address")
	modelPath := flag.String("model", "", "path to a trained policy artifact (empty disables agent control)")
	staticDir := flag.String("static", "", "directory of a prebuilt web bundle to serve (empty disables static serving)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("rocketserver: reading config %s: %v", *configPath, err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		log.Fatalf("rocketserver: parsing config %s: %v", *configPath, err)
	}
	view := config.New(tree)

	rc, err := resolveConfig(view)
	if err != nil {
		log.Fatalf("rocketserver: resolving config: %v", err)
	}
	log.Infof("rocketserver: loaded config for %d rockets, dt=%.3fs", rc.numRockets, rc.simulation.Dt)

	var pol policy.Policy
	if *modelPath != "" {
		backend, err := policy.NewTFLiteBackend(*modelPath)
		if err != nil {
			log.Fatalf("rocketserver: loading policy backend %s: %v", *modelPath, err)
		}
		clipObs, err := view.Float64("rl.clip_obs")
		if err != nil {
			log.Fatalf("rocketserver: resolving rl.clip_obs: %v", err)
		}
		stats, err := loadNormStats(view)
		if err != nil {
			log.Fatalf("rocketserver: resolving normalization stats: %v", err)
		}
		pol = policy.NewAdapter(backend, stats, clipObs)
		log.Infof("rocketserver: policy backend loaded from %s", *modelPath)
	} else {
		log.Info("rocketserver: no --model given, agent control disabled")
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	srv := &http.Server{
		Addr:    *addr,
		Handler: newRouter(rc, pol, metrics, rc.logsDir, *staticDir),
	}

	go func() {
		log.Infof("rocketserver: listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("rocketserver: serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("rocketserver: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("rocketserver: graceful shutdown failed: %v", err)
	}
	log.Info("rocketserver: stopped")
}

// loadNormStats reads the per-field {mean, var} normalization statistics
// saved alongside the trained policy (spec §4.4): two parallel 8-element
// arrays under rl.norm_stats.mean / rl.norm_stats.var.
func loadNormStats(v *config.View) (policy.NormStats, error) {
	var stats policy.NormStats

	mean, err := v.FloatArray("rl.norm_stats.mean", 8)
	if err != nil {
		return stats, err
	}
	variance, err := v.FloatArray("rl.norm_stats.var", 8)
	if err != nil {
		return stats, err
	}
	copy(stats.Mean[:], mean)
	copy(stats.Var[:], variance)
	return stats, nil
}
