package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/warden-rc/warden/internal/config"
	"github.com/warden-rc/warden/pkg/feature"
	"github.com/warden-rc/warden/pkg/middleware"
	"github.com/warden-rc/warden/pkg/plugins/demo"
	"github.com/warden-rc/warden/pkg/protocol"
	"github.com/warden-rc/warden/pkg/remote"
	"github.com/warden-rc/warden/pkg/snapshot"
)

const transportWriteTimeout = 10 * time.Second

func buildTransport(cfg *config.Config, engineCfg remote.Config) *protocol.Transport {
	t := protocol.NewTransport(engineCfg.ConnectTimeout, cfg.Session.ReadTimeout, transportWriteTimeout)
	t.KeepaliveInterval = cfg.Session.KeepaliveInterval
	return t
}

func watchCmd(configPath *string) *cobra.Command {
	var (
		mode             string
		snapshotInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <host>...",
		Short: "Connect to hosts and stream their framebuffers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			updateMode, err := parseUpdateMode(mode)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg, args, updateMode, snapshotInterval)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "monitor", "Update mode (basic, monitor, live)")
	cmd.Flags().DurationVar(&snapshotInterval, "snapshot-interval", 0, "Archive a snapshot of every host at this interval (0 disables)")

	return cmd
}

func parseUpdateMode(s string) (remote.UpdateMode, error) {
	switch s {
	case "basic":
		return remote.UpdateBasic, nil
	case "monitor":
		return remote.UpdateMonitor, nil
	case "live":
		return remote.UpdateLive, nil
	default:
		return 0, fmt.Errorf("unknown update mode %q", s)
	}
}

func runWatch(ctx context.Context, cfg *config.Config, hosts []string, mode remote.UpdateMode, snapshotInterval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	engineCfg := cfg.SessionEngineConfig()

	registry := prometheus.NewRegistry()
	metrics := remote.NewMetrics(registry)

	disabled, err := cfg.DisabledFeatures()
	if err != nil {
		return err
	}
	catalog := feature.NewCatalog(demo.New(logger))
	router := feature.NewRouter(catalog,
		feature.WithRouterLogger(logger),
		feature.WithDisabledFeatures(disabled...))

	store, err := buildSnapshotStore(ctx, cfg.Snapshots)
	if err != nil {
		return err
	}

	transport := buildTransport(cfg, engineCfg)

	targets := make([]*feature.ComputerControl, 0, len(hosts))
	for _, host := range hosts {
		conn := remote.New(host, engineCfg, transport,
			remote.WithLogger(logger),
			remote.WithMetrics(metrics))
		target := feature.NewComputerControl(conn)
		bindObserver(ctx, logger, router, target)

		conn.SetUpdateMode(mode)
		if err := conn.Connect(); err != nil {
			return err
		}
		targets = append(targets, target)
	}

	srv := startMetricsServer(logger, cfg.Metrics.Listen, registry)

	if store != nil && snapshotInterval > 0 {
		go snapshotLoop(ctx, logger, store, targets, snapshotInterval, cfg.Snapshots.MaxAge)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	for _, t := range targets {
		if err := t.Connection().Stop(); err != nil {
			logger.Warn("session stop failed", "host", t.Host(), "error", err)
		}
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	return nil
}

func bindObserver(ctx context.Context, logger *slog.Logger, router *feature.Router, target *feature.ComputerControl) {
	host := target.Host()
	target.Connection().AddObserver(&remote.Observer{
		StateChanged: func(state remote.ConnectionState) {
			logger.Info("connection state changed", "host", host, "state", state)
		},
		FramebufferResized: func(width, height int) {
			logger.Info("framebuffer resized", "host", host, "width", width, "height", height)
		},
		FeatureData: func(payload []byte) {
			msg, err := feature.DecodeMessage(payload)
			if err != nil {
				logger.Warn("malformed feature message", "host", host, "error", err)
				return
			}
			router.DispatchAtController(ctx, target, msg)
		},
	})
}

func buildSnapshotStore(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "disk":
		return snapshot.NewDiskStore(cfg.Directory)
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return snapshot.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func startMetricsServer(logger *slog.Logger, listen string, registry *prometheus.Registry) *http.Server {
	if listen == "" {
		return nil
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(middleware.WithRegistry(registry)))
	r.Use(middleware.OTel())
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: listen, Handler: r}
	go func() {
		logger.Info("metrics endpoint listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func snapshotLoop(ctx context.Context, logger *slog.Logger, store snapshot.Store, targets []*feature.ComputerControl, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, t := range targets {
			img, err := t.Connection().CurrentImage()
			if err != nil {
				continue
			}
			id, err := store.Save(ctx, t.Host(), img)
			if err != nil {
				logger.Warn("snapshot failed", "host", t.Host(), "error", err)
				continue
			}
			logger.Debug("snapshot archived", "host", t.Host(), "id", id)
		}

		if maxAge > 0 {
			if err := store.Cleanup(ctx, maxAge); err != nil {
				logger.Warn("snapshot cleanup failed", "error", err)
			}
		}
	}
}
