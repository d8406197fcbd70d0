package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyki/hoya/pkg/appstate"
	"github.com/keyki/hoya/pkg/config"
	hoyalog "github.com/keyki/hoya/pkg/log"
	"github.com/keyki/hoya/pkg/metrics"
	"github.com/keyki/hoya/pkg/provider"
	"github.com/keyki/hoya/pkg/provider/flume"
	"github.com/keyki/hoya/pkg/provider/tomcat"
	"github.com/keyki/hoya/pkg/reviewer"
	"github.com/keyki/hoya/pkg/rolehistory"
	"github.com/keyki/hoya/pkg/runtime"
	"github.com/keyki/hoya/pkg/types"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "roleam-am",
	Short:   "Role-based application master control-plane engine",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("roleam-am version %s (%s)\n", Version, Commit))
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("cluster-spec", "", "path to the cluster spec YAML document")
	serveCmd.Flags().String("provider", "flume", "workload provider (flume, tomcat)")
	serveCmd.Flags().String("history-dir", "./roleam-history", "directory for the durable role history store")
	serveCmd.Flags().String("containerd-socket", runtime.DefaultSocketPath, "containerd socket path")
	serveCmd.Flags().String("image", "docker.io/library/busybox:latest", "container image launched for every role")
	serveCmd.Flags().Duration("review-interval", 10*time.Second, "interval between review passes")
	serveCmd.Flags().String("metrics-addr", ":9090", "address to serve prometheus metrics on")
	serveCmd.Flags().Bool("json-log", false, "emit JSON-formatted logs")
	_ = serveCmd.MarkFlagRequired("cluster-spec")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the application master engine against a cluster spec",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	specPath, _ := cmd.Flags().GetString("cluster-spec")
	providerName, _ := cmd.Flags().GetString("provider")
	historyDir, _ := cmd.Flags().GetString("history-dir")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	image, _ := cmd.Flags().GetString("image")
	reviewInterval, _ := cmd.Flags().GetDuration("review-interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	jsonLog, _ := cmd.Flags().GetBool("json-log")

	hoyalog.Init(hoyalog.Config{Level: hoyalog.LevelInfo, JSONOutput: jsonLog})

	spec, err := config.Load(specPath)
	if err != nil {
		return err
	}

	prov, err := resolveProvider(providerName)
	if err != nil {
		return err
	}

	roles, err := config.ResolveRoles(spec, prov.Roles())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	store, err := rolehistory.NewStore(historyDir)
	if err != nil {
		return err
	}
	defer store.Close()

	history := rolehistory.New(store)
	if err := history.Load(); err != nil {
		return fmt.Errorf("load role history: %w", err)
	}

	limits := defaultContainerLimits()

	engine, err := appstate.New(spec, roles, limits, history, time.Now())
	if err != nil {
		return err
	}

	driver, err := runtime.NewContainerdDriver(socketPath, image)
	if err != nil {
		return err
	}
	defer driver.Close()

	rev := reviewer.New(engine, driver, reviewInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rev.Start(ctx); err != nil {
		return fmt.Errorf("start reviewer: %w", err)
	}

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	errCh := make(chan error, 1)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	hoyalog.Info("application master started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		hoyalog.Info("shutdown requested")
	case td := <-rev.TeardownCh:
		hoyalog.Errorf(td, "cluster teardown triggered")
	case err := <-errCh:
		hoyalog.Error(err, "metrics server failed")
	}

	rev.Stop()

	for _, release := range engine.ReleaseAllContainers() {
		if err := driver.ReleaseContainer(ctx, release); err != nil {
			hoyalog.Error(err, "release container during shutdown")
		}
	}

	_ = metricsSrv.Close()

	hoyalog.Info("shutdown complete")
	return nil
}

func resolveProvider(name string) (provider.Provider, error) {
	switch name {
	case "flume":
		return flume.Provider{}, nil
	case "tomcat":
		return tomcat.Provider{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// defaultContainerLimits is the container ceiling the engine resolves "max"
// resource options against. This binary always uses it; the cluster spec is
// not consulted for a ceiling.
func defaultContainerLimits() types.ContainerLimits {
	return types.ContainerLimits{MaxMemoryMB: 8192, MaxVCores: 8}
}
