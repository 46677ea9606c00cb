package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/dvrd/internal/access"
	"github.com/ManuGH/dvrd/internal/api"
	"github.com/ManuGH/dvrd/internal/channels"
	"github.com/ManuGH/dvrd/internal/config"
	"github.com/ManuGH/dvrd/internal/dvr"
	"github.com/ManuGH/dvrd/internal/epg"
	"github.com/ManuGH/dvrd/internal/log"
	"github.com/ManuGH/dvrd/internal/notify"
	"github.com/ManuGH/dvrd/internal/persistence"
	"github.com/ManuGH/dvrd/internal/timers"
)

// stubRecorder stands in for the capture pipeline, which attaches through
// the Recorder interface and reports back via Engine.RecorderUpdate.
type stubRecorder struct{}

func (r *stubRecorder) Subscribe(e *dvr.Entry) {
	logc := log.WithComponent("recorder")
	logc.Info().Str("uuid", e.UUID).
		Str("title", e.Title.Get()).Msg("subscribe")
}

func (r *stubRecorder) Unsubscribe(e *dvr.Entry, code dvr.StopCode) {
	logc := log.WithComponent("recorder")
	logc.Info().Str("uuid", e.UUID).
		Int("code", int(code)).Msg("unsubscribe")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		base := log.Base()
		base.Fatal().Err(err).Msg("load configuration")
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Service: "dvrd"})
	logc := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logc.Fatal().Err(err).Msg("create data directory")
	}
	if err := os.MkdirAll(cfg.Storage, 0o755); err != nil {
		logc.Fatal().Err(err).Msg("create storage directory")
	}

	store, err := persistence.Open(filepath.Join(cfg.DataDir, "settings"))
	if err != nil {
		logc.Fatal().Err(err).Msg("open settings store")
	}
	defer store.Close()

	rules := dvr.NewRules(filepath.Join(cfg.DataDir, "rules.json"))
	if err := rules.Load(); err != nil {
		logc.Fatal().Err(err).Msg("load rules")
	}

	notifier := notify.NewNotifier()
	defer notifier.Close()

	inventory := channels.NewInventory()
	guide := epg.NewGuide()
	profiles := config.NewProfiles(cfg.DefaultProfile())

	eng := dvr.New(dvr.Options{
		Clock:    timers.RealClock{},
		Store:    store,
		Notifier: notifier,
		Channels: inventory,
		Guide:    guide,
		Profiles: profiles,
		Recorder: &stubRecorder{},
		Rules:    rules,
		Registry: prometheus.DefaultRegisterer,
	})

	watcher, err := dvr.NewWatcher(eng.FileVanished)
	if err != nil {
		logc.Fatal().Err(err).Msg("create file watcher")
	}
	defer watcher.Close()
	eng.AttachWatcher(watcher)

	if err := eng.LoadAll(); err != nil {
		logc.Fatal().Err(err).Msg("load persisted entries")
	}
	logc.Info().Int("entries", len(eng.List())).Msg("entries restored")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Wheel().Start(ctx)

	srv := api.NewServer(eng, rules, func(r *http.Request) access.Actor {
		// Authentication is fronted by the deployment; everyone who reaches
		// this listener is an operator.
		name := r.Header.Get("X-User")
		if name == "" {
			name = "admin"
		}
		return access.Actor{Name: name, Perms: access.Admin}
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", srv.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logc.Info().Str("listen", cfg.Listen).Msg("http server starting")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logc.Fatal().Err(err).Msg("daemon terminated")
	}
	logc.Info().Msg("shutdown complete")
}
