// Command lockd runs the cache-coherent lock server (Component C of
// spec.md §4.1) and the Paxos node backing its view-change agreement
// (Component E of spec.md §4.2), both reachable over one net/rpc
// listener. Grounded on the teacher's cmd/dfs/main.go +
// cmd/dfs/commands/start.go split.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/internal/profiling"
	"github.com/coldfront/dfs/pkg/config"
	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/metrics"
	"github.com/coldfront/dfs/pkg/paxos"
	"github.com/coldfront/dfs/pkg/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lockd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "lockd <port>",
		Short: "Run the dfs lock server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := ":" + args[0]
			cmd.Flags().Set("addr", addr)
			return run(cmd, configFile, addr)
		},
	}

	cmd.Flags().String("addr", "", "address to listen on (overridden by the positional port)")
	cmd.Flags().StringSlice("peers", nil, "Paxos roster, including this node's own address")
	cmd.Flags().String("paxos-log", "", "path to this node's durable Paxos log (empty uses an in-memory, non-durable log)")
	cmd.Flags().Duration("revoke-timeout", lockservice.DefaultRevokeTimeout, "how long a revoke may sit outstanding before being force-reclaimed")
	cmd.Flags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().String("metrics-addr", "", "if set, serve Prometheus metrics over HTTP at this address")
	cmd.Flags().String("profile-server", "", "if set, send continuous profiles to this Pyroscope server")
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	return cmd
}

func run(cmd *cobra.Command, configFile, addr string) error {
	cfg, err := config.LoadLockd(cmd, configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		metrics.InitRegistry()
		go serveMetrics(cfg.MetricsAddr)
	}
	if cfg.ProfileServer != "" {
		profiler, err := profiling.Start("dfs.lockd", cfg.ProfileServer)
		if err != nil {
			return fmt.Errorf("lockd: start profiler: %w", err)
		}
		defer profiler.Stop()
	}

	// This node's identity in the Paxos roster is its own listen
	// address; peers not naming it are left out of every Run() call
	// it would otherwise make against itself.
	persister, err := newPersister(cfg.PaxosLog)
	if err != nil {
		return fmt.Errorf("lockd: paxos log: %w", err)
	}

	lockSrv := lockservice.NewServer()

	var vm *lockservice.ViewManager
	px, err := paxos.New(addr, paxos.NewTCPDialer(), persister, func(instance uint64, value string) {
		vm.OnCommit(instance, value)
	}, isFirst(cfg.Peers, addr), lockservice.EncodeView(cfg.Peers))
	if err != nil {
		return fmt.Errorf("lockd: paxos init: %w", err)
	}
	vm = lockservice.NewViewManager(px, cfg.Peers)

	scanner := lockservice.NewRevokeScanner(lockSrv, cfg.RevokeTimeout)
	lockSrv.Start()
	scanner.Start()
	defer scanner.Stop()
	defer lockSrv.Close()

	srv := rpc.NewServer("lockd")
	if err := srv.Register(lockservice.ServiceName, lockSrv); err != nil {
		return fmt.Errorf("lockd: register lock service: %w", err)
	}
	if err := srv.Register(paxos.ServiceName, px); err != nil {
		return fmt.Errorf("lockd: register paxos service: %w", err)
	}

	logger.Info("lockd starting", "addr", cfg.Addr, "peers", strings.Join(cfg.Peers, ","))
	return srv.ListenAndServe(cfg.Addr)
}

// newPersister opens a durable FilePersister at path, or falls back to
// a NullPersister (no restart recovery) when path is empty.
func newPersister(path string) (paxos.Persister, error) {
	if path == "" {
		return paxos.NewNullPersister(), nil
	}
	return paxos.NewFilePersister(path)
}

// isFirst reports whether addr is the lexicographically-first member
// of peers, so exactly one node in a fresh cluster seeds instance 1
// with the initial view rather than every node racing to do so.
func isFirst(peers []string, addr string) bool {
	if len(peers) == 0 {
		return true
	}
	first := peers[0]
	for _, p := range peers[1:] {
		if p < first {
			first = p
		}
	}
	return first == addr
}

func serveMetrics(addr string) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("metrics server stopped", logger.Err(err))
	}
}
