// Command dfsclient mounts the dfs filesystem over FUSE, combining
// Components B (extent client cache), D (lock client cache), and F
// (filesystem semantics) behind the H bridge in node.go. Grounded on
// the teacher's cmd/dfs/main.go + cmd/dfs/commands/start.go split.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coldfront/dfs/internal/fsops"
	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/internal/profiling"
	"github.com/coldfront/dfs/pkg/config"
	"github.com/coldfront/dfs/pkg/extentclient"
	"github.com/coldfront/dfs/pkg/lockclient"
	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/rpc"
	hfs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dfsclient: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "dfsclient <mountpoint> <extent-server-addr> <lock-server-addr>",
		Short: "Mount the dfs filesystem over FUSE",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Flags().Set("mountpoint", args[0])
			cmd.Flags().Set("extent-server", args[1])
			cmd.Flags().Set("lock-server", args[2])
			return run(cmd, configFile)
		},
	}

	cmd.Flags().String("mountpoint", "", "local directory to mount at (overridden by the positional arg)")
	cmd.Flags().String("extent-server", "", "extent server RPC address (overridden by the positional arg)")
	cmd.Flags().String("lock-server", "", "lock server RPC address (overridden by the positional arg)")
	cmd.Flags().String("callback-addr", ":0", "address this client's own RLock callback listener binds to")
	cmd.Flags().String("client-id", "", "unique id presented to the lock server (default: hostname-pid)")
	cmd.Flags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().String("profile-server", "", "if set, send continuous profiles to this Pyroscope server")
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	return cmd
}

func run(cmd *cobra.Command, configFile string) error {
	cfg, err := config.LoadClient(cmd, configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		return err
	}
	if cfg.ProfileServer != "" {
		profiler, err := profiling.Start("dfs.dfsclient", cfg.ProfileServer)
		if err != nil {
			return fmt.Errorf("dfsclient: start profiler: %w", err)
		}
		defer profiler.Stop()
	}

	extClient, err := extentclient.Dial(cfg.ExtentServer)
	if err != nil {
		return fmt.Errorf("dfsclient: dial extent server: %w", err)
	}
	extCache := extentclient.NewCache(extClient)

	// The lock client's revoke/retry callback listener must be bound
	// before the lock client is built (its address is what the server
	// calls back), and registered and serving before the first Acquire,
	// so the server can reach it the moment it learns this client's
	// address (spec.md §4.1).
	callbackSrv := rpc.NewServer("dfsclient")
	lockClient, err := dialLockClient(callbackSrv, cfg)
	if err != nil {
		return err
	}
	defer lockClient.Close()

	fsys := fsops.New(lockClient, extCache, extClient)
	if err := fsys.Bootstrap(); err != nil {
		return fmt.Errorf("dfsclient: bootstrap root: %w", err)
	}
	ops = fsys

	root := childNode(fsops.RootInum)
	server, err := hfs.Mount(cfg.Mountpoint, root, &hfs.Options{})
	if err != nil {
		return fmt.Errorf("dfsclient: mount: %w", err)
	}

	logger.Info("dfsclient mounted", "mountpoint", cfg.Mountpoint, "extent-server", cfg.ExtentServer, "lock-server", cfg.LockServer)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("dfsclient unmounting")
		server.Unmount()
	}()

	server.Wait()
	return nil
}

// dialLockClient binds callbackSrv at cfg.CallbackAddr, dials the lock
// server, builds a lockclient.Client over that connection using the
// listener's actual bound address (relevant when CallbackAddr is
// ":0"), registers the client to receive its revoke/retry RPCs, and
// starts serving.
func dialLockClient(callbackSrv *rpc.Server, cfg config.ClientConfig) (*lockclient.Client, error) {
	if err := callbackSrv.Listen(cfg.CallbackAddr); err != nil {
		return nil, fmt.Errorf("dfsclient: callback listener: %w", err)
	}

	transport, err := rpc.Dial(cfg.LockServer)
	if err != nil {
		return nil, fmt.Errorf("dfsclient: dial lock server: %w", err)
	}
	client := lockclient.New(transport, cfg.ClientID, callbackSrv.Addr)
	if err := callbackSrv.Register(lockservice.ClientServiceName, client); err != nil {
		return nil, fmt.Errorf("dfsclient: register callback service: %w", err)
	}

	go func() {
		if err := callbackSrv.Serve(); err != nil {
			logger.Error("callback listener stopped", logger.Err(err))
		}
	}()
	return client, nil
}
