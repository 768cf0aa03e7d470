// Command extentd runs the extent server (Component A of spec.md §3):
// a single-node durable map of extent id to (bytes, attr), reachable
// over net/rpc as the "Extent" service. Grounded on the teacher's
// cmd/dfs/main.go + cmd/dfs/commands/start.go split, simplified to a
// single foreground command since extentd has no daemon/backup/stop
// surface of its own.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/coldfront/dfs/internal/extentstore"
	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/internal/profiling"
	"github.com/coldfront/dfs/pkg/config"
	"github.com/coldfront/dfs/pkg/metrics"
	"github.com/coldfront/dfs/pkg/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "extentd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "extentd <port>",
		Short: "Run the dfs extent server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Flags().Set("addr", ":"+args[0])
			return run(cmd, configFile)
		},
	}

	cmd.Flags().String("addr", "", "address to listen on (overridden by the positional port)")
	cmd.Flags().String("dir", "ID", "root directory for extent data/attr files")
	cmd.Flags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().String("metrics-addr", "", "if set, serve Prometheus metrics over HTTP at this address")
	cmd.Flags().String("profile-server", "", "if set, send continuous profiles to this Pyroscope server")
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	return cmd
}

func run(cmd *cobra.Command, configFile string) error {
	cfg, err := config.LoadExtentd(cmd, configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		return err
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		metrics.InitRegistry()
		go serveMetrics(metricsAddr)
	}
	if cfg.ProfileServer != "" {
		profiler, err := profiling.Start("dfs.extentd", cfg.ProfileServer)
		if err != nil {
			return fmt.Errorf("extentd: start profiler: %w", err)
		}
		defer profiler.Stop()
	}

	store, err := extentstore.New(extentstore.DefaultConfig(cfg.Dir))
	if err != nil {
		return fmt.Errorf("extentd: open store: %w", err)
	}
	defer store.Close()

	srv := rpc.NewServer("extentd")
	if err := srv.Register(extentstore.ServiceName, extentstore.NewServer(store)); err != nil {
		return fmt.Errorf("extentd: register: %w", err)
	}

	logger.Info("extentd starting", "addr", cfg.Addr, "dir", cfg.Dir)
	return srv.ListenAndServe(cfg.Addr)
}

func serveMetrics(addr string) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("metrics server stopped", logger.Err(err))
	}
}
