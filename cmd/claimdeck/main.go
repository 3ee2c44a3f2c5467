// claimdeck runs the dashboard session daemon: it composes the entity store,
// hydrates it from the backend, keeps it current over the realtime feed, and
// serves the local dashboard API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelhealth/claimdeck/pkg/backend"
	"github.com/kestrelhealth/claimdeck/pkg/bus"
	"github.com/kestrelhealth/claimdeck/pkg/config"
	"github.com/kestrelhealth/claimdeck/pkg/export"
	"github.com/kestrelhealth/claimdeck/pkg/logging"
	"github.com/kestrelhealth/claimdeck/pkg/realtime"
	"github.com/kestrelhealth/claimdeck/pkg/relation"
	"github.com/kestrelhealth/claimdeck/pkg/store"
	"github.com/kestrelhealth/claimdeck/pkg/uiserver"
	"github.com/kestrelhealth/claimdeck/pkg/uistate"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: standard locations)")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		exportDir  = flag.String("export-dir", "exports", "directory for bulk export files")
		trace      = flag.Bool("trace", false, "print backend request spans to stdout")
	)
	flag.Parse()

	log := logging.New("claimdeck", parseLevel(*logLevel))

	if *trace {
		shutdown, err := setupTracing("claimdeck")
		if err != nil {
			log.Error("tracing setup failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	if err := run(log, *configPath, *exportDir); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *logging.Logger, configPath, exportDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	state, err := uistate.Open(cfg.Persist.Path)
	if err != nil {
		return fmt.Errorf("open ui state: %w", err)
	}
	defer state.Close()

	client, err := backend.New(backend.Config{
		BaseURL:           cfg.Backend.BaseURL,
		Token:             cfg.Backend.Token,
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	st := store.New(store.Config{
		Client:               client,
		Logger:               log,
		DefaultClaimStatuses: cfg.UI.DefaultClaimStatuses,
	})
	restoreUIState(st, state, log)

	eventBus, err := openBus(cfg)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	defer eventBus.Close()
	attachBusPublisher(ctx, st, eventBus, log)

	exporter := export.New(dirSaver{dir: exportDir})
	st.SetExportHook(func(table string, ids []string) error {
		headers, rows, err := exportRows(st, table, ids)
		if err != nil {
			return err
		}
		return exporter.Export(table, headers, rows, export.FormatXLSX, time.Now())
	})
	st.SetBulkAuditHook(func(res store.BulkResult) {
		err := state.RecordBulkAudit("", string(res.Kind), res.Table,
			len(res.Succeeded), len(res.Failed), res.Failed)
		if err != nil {
			log.Warn("record bulk audit", "error", err)
		}
	})

	resolver := relation.New(st)
	_ = resolver // joins are served to the dashboard shell; keep it subscribed

	log.Info("hydrating collections", "backend", cfg.Backend.BaseURL)
	if err := st.FetchAllCollections(ctx); err != nil {
		// Partial hydration is survivable; slices carry their own error state.
		log.Warn("initial fetch incomplete", "error", err)
	}

	rec := realtime.New(realtime.Config{
		BaseURL: cfg.Realtime.BaseURL,
		Backoff: realtime.Backoff{
			Base:       cfg.Realtime.Reconnect.BaseDelay,
			Max:        cfg.Realtime.Reconnect.MaxDelay,
			Multiplier: cfg.Realtime.Reconnect.Multiplier,
		},
		Logger: log,
	})
	defer rec.Close()

	for table, handler := range st.RealtimeBindings() {
		if _, err := rec.Subscribe(ctx, table, handler, ""); err != nil {
			return fmt.Errorf("subscribe %s: %w", table, err)
		}
	}
	log.Info("realtime channels open", "tables", len(rec.Tables()))

	srv := uiserver.New(uiserver.Config{Store: st, Health: rec, Logger: log})
	httpServer := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("dashboard API listening", "bind", cfg.Server.Bind)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, log, func(fresh *config.Config) {
				// Display tunables are safe to apply live; everything else
				// waits for a restart.
				if fresh.UI.PageSize > 0 {
					if err := state.SetPageSize(fresh.UI.PageSize); err != nil {
						log.Warn("persist page size", "error", err)
					}
				}
				st.SetDefaultClaimStatuses(fresh.UI.DefaultClaimStatuses)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	persistUIState(st, state, log)
	return err
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openBus(cfg *config.Config) (bus.Bus, error) {
	if cfg.Bus.Enabled && cfg.Bus.URL != "" {
		return bus.NewNATSBus(cfg.Bus.URL)
	}
	return bus.NewMemoryBus(), nil
}

// attachBusPublisher forwards every applied store mutation onto the bus so
// sibling processes (audit tails, reporting exporters) can follow along.
func attachBusPublisher(ctx context.Context, st *store.Store, b bus.Bus, log *logging.Logger) {
	st.Subscribe(func(ev store.ChangeEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err := b.Publish(ctx, bus.ChangeSubject(ev.Table, string(ev.Op)), data); err != nil && !errors.Is(err, bus.ErrClosed) {
			log.Warn("bus publish failed", "table", ev.Table, "error", err)
		}
	})
}

func restoreUIState(st *store.Store, state *uistate.Store, log *logging.Logger) {
	if view, err := state.View(); err == nil && view != "" {
		st.SetView(store.View(view))
	} else if err != nil {
		log.Warn("restore view", "error", err)
	}
	if crumbs, err := state.Breadcrumbs(); err == nil && len(crumbs) > 0 {
		st.SetBreadcrumbs(crumbs)
	} else if err != nil {
		log.Warn("restore breadcrumbs", "error", err)
	}
}

func persistUIState(st *store.Store, state *uistate.Store, log *logging.Logger) {
	if err := state.SetView(string(st.CurrentView())); err != nil {
		log.Warn("persist view", "error", err)
	}
	if err := state.SetBreadcrumbs(st.Breadcrumbs()); err != nil {
		log.Warn("persist breadcrumbs", "error", err)
	}
}

// dirSaver writes export payloads under a local directory.
type dirSaver struct {
	dir string
}

func (s dirSaver) Save(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}
