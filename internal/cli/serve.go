package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/luthfi/sentuh/internal/config"
	"github.com/luthfi/sentuh/internal/logger"
	"github.com/luthfi/sentuh/internal/observability"
	"github.com/luthfi/sentuh/internal/tracing"
	"github.com/luthfi/sentuh/pkg/agent"
	"github.com/luthfi/sentuh/pkg/session"
	"github.com/luthfi/sentuh/pkg/trajectory"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sentuh session runtime",
	Long: `Run the session runtime in the foreground: the agent factory, the
device session registry, the idle-session janitor, and (when enabled)
the Prometheus endpoint. Device frontends embed or connect to this
runtime to drive sessions.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return err
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer lg.Close()

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			log.Warn().Err(err).Msg("audit log unavailable, falling back to stderr")
		}
	}

	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Tracing.ServiceName); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("tracing shutdown failed")
			}
		}()
	}

	factory := agent.NewFactory()

	var opts []session.Option
	if cfg.Archive.Enabled {
		archiver, err := trajectory.NewArchiver(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archiver.Close()
		opts = append(opts, session.WithArchiver(archiver))
	}
	registry := session.NewRegistry(factory, opts...)

	if cfg.Janitor.Enabled {
		janitor := session.NewJanitor(registry, cfg.Janitor.IdleAge)
		if err := janitor.Start(cfg.Janitor.Schedule); err != nil {
			return err
		}
		defer janitor.Stop()
	}

	watcher, err := config.NewWatcher(loader, func(next *config.Config) {
		// Logging level is the only setting applied live; the rest
		// takes effect on restart.
		cfg = next
		log.Info().Str("level", next.Logging.Level).Msg("configuration updated")
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint listening")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	log.Info().
		Str("version", version).
		Strs("agent_types", factory.List()).
		Msg("sentuh runtime ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown failed")
		}
	}
	for _, status := range registry.List() {
		if err := registry.Remove(context.Background(), status.DeviceID); err != nil {
			log.Warn().Err(err).Str("device_id", status.DeviceID).Msg("session teardown failed")
		}
	}
	return nil
}
