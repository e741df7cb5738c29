// gozmap scans the target address space with a stateless TCP SYN probe,
// emitting one record per response to its configured output module.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netreach/gozmap/internal/config"
	"github.com/netreach/gozmap/internal/logging"
	"github.com/netreach/gozmap/internal/metrics"
	"github.com/netreach/gozmap/internal/supervisor"
	appversion "github.com/netreach/gozmap/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "gozmap",
		Short:         "Internet-scale stateless TCP SYN scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runScan(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (YAML)")
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gozmap version and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), appversion.Full("gozmap"))
			return nil
		},
	}
}

func runScan(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return err
	}

	logLevel := logging.NewLevelVar(cfg.Log)
	logger := logging.New(cfg.Log, logLevel)

	logger.Info("gozmap starting",
		slog.String("version", appversion.Version),
		slog.String("interface", cfg.Interface),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("probe_module", cfg.ProbeModule),
		slog.String("output_module", cfg.OutputModule),
	)

	sv, err := supervisor.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build supervisor: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(sv.SendState(), sv.RecvState()))
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	if err := runServers(cfg, sv, metricsSrv, logger); err != nil {
		logger.Error("gozmap exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("gozmap stopped")
	return nil
}

// runServers runs the metrics HTTP server and the scan side by side,
// stopping both on SIGINT/SIGTERM or when the scan itself completes,
// grounded on the teacher's errgroup-plus-signal.NotifyContext shutdown
// shape in cmd/gobfd/main.go's runServers.
func runServers(cfg *config.Config, sv *supervisor.Supervisor, metricsSrv *http.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var lc net.ListenConfig
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		err := sv.Run(gCtx)
		// The scan finishing on its own is the normal exit path: tear
		// down the metrics server too instead of waiting for a signal.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}
