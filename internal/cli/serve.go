package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/homewatch-io/homewatch/internal/api"
	"github.com/homewatch-io/homewatch/internal/config"
	"github.com/homewatch-io/homewatch/internal/engine"
	"github.com/homewatch-io/homewatch/internal/extension"
	"github.com/homewatch-io/homewatch/internal/store"
)

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assessment engine behind its HTTP surface",
	Long: "Loads the YAML config, starts the engine and serves the REST API.\n" +
		"The config file is watched: edits hot-reload if valid, otherwise the\n" +
		"running configuration is kept.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	loader, err := config.NewLoader(rootConfigPath, log)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := loader.Config()

	opts := engine.Options{Log: log}

	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		opts.Store = db
		log.Info("pattern store opened", "path", cfg.Store.Path)
	}

	reg, err := buildExtensions(cfg, log)
	if err != nil {
		return err
	}
	if reg.Len() > 0 {
		opts.Extensions = reg
		log.Info("extensions registered", "names", reg.Names())
	}

	eng, err := engine.New(cfg, opts)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng.Start(ctx)
	defer eng.Shutdown()

	loader.OnChange(func(next *config.Config) {
		if err := eng.ApplyConfig(next); err != nil {
			log.Warn("hot-reload skipped", "err", err)
			return
		}
		log.Info("config hot-reloaded", "version", next.Version)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		log.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	listen := cfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}
	srv := &http.Server{
		Addr:         listen,
		Handler:      api.New(eng, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutCancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("goodbye")
	return nil
}

// buildExtensions wires the post-processors named in the config. Unknown
// names are an error so typos cannot silently disable an alerter.
func buildExtensions(cfg *config.Config, log *slog.Logger) (*extension.Registry, error) {
	reg := extension.NewRegistry(log)
	for _, ec := range cfg.Extensions {
		if !ec.Enabled {
			continue
		}
		switch ec.Name {
		case "threshold_alerter":
			ext, err := extension.NewThresholdAlerter(ec.Settings)
			if err != nil {
				return nil, fmt.Errorf("extension %s: %w", ec.Name, err)
			}
			reg.Register(ext)
		case "noop":
			reg.Register(extension.Noop{ExtName: "noop"})
		default:
			return nil, fmt.Errorf("unknown extension %q", ec.Name)
		}
	}
	return reg, nil
}
