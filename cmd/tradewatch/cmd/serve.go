package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradewatch/broker"
	"github.com/rustyeddy/tradewatch/broker/mt5bridge"
	"github.com/rustyeddy/tradewatch/config"
	"github.com/rustyeddy/tradewatch/guard"
	"github.com/rustyeddy/tradewatch/journal"
	"github.com/rustyeddy/tradewatch/proclock"
	"github.com/rustyeddy/tradewatch/server"
	"github.com/rustyeddy/tradewatch/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the trade-management HTTP server.

The server exposes the watcher lifecycle, risk and volume calculations,
the execution guard, the event journal, and Prometheus metrics.

Example:
  tradewatch serve -f tradewatch.yaml`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveAutostart  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "start the TP1 watcher immediately (disarmed)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if serveAutostart {
		res := deps.manager.Start(false)
		log.Printf("watcher autostart: running=%v reason=%q", res.Running, res.Reason)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: server.New(deps.manager, deps.guard, deps.resolver, deps.reader, server.Defaults{
			MinVolume:  cfg.Defaults.MinVolume,
			VolumeStep: cfg.Defaults.VolumeStep,
		}).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	}

	deps.manager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

type deps struct {
	manager  *watcher.Manager
	guard    *guard.Guard
	resolver *broker.Resolver
	reader   journal.Reader
}

// buildDeps wires the gateway, guard, lock, journal and watcher from
// the configuration. The returned cleanup closes the journal.
func buildDeps(cfg *config.Config) (*deps, func(), error) {
	gw := mt5bridge.NewClient(cfg.Bridge.URL, cfg.Bridge.Token)
	g := guard.New(cfg.Execution.Enabled)
	lock := proclock.New(cfg.Watcher.LockPath)

	var jnl *journal.SQLiteJournal
	var reader journal.Reader
	cleanup := func() {}
	if cfg.Journal.DBPath != "" {
		var err error
		jnl, err = journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		reader = jnl
		cleanup = func() { jnl.Close() }
	}

	poll, err := cfg.Watcher.ParsePollInterval()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("poll interval: %w", err)
	}

	wcfg := watcher.Config{
		Magic:          cfg.Watcher.Magic,
		CommentPrefix:  cfg.Watcher.CommentPrefix,
		PollInterval:   poll,
		TP1Pips:        cfg.Watcher.TP1Pips,
		PartialPercent: cfg.Watcher.PartialPercent,
		BEBufferPips:   cfg.Watcher.BEBufferPips,
		MoveToBE:       cfg.Watcher.MoveToBE,
	}

	var mgr *watcher.Manager
	if jnl != nil {
		mgr = watcher.New(gw, g, lock, jnl, wcfg)
	} else {
		mgr = watcher.New(gw, g, lock, nil, wcfg)
	}

	return &deps{
		manager:  mgr,
		guard:    g,
		resolver: broker.NewResolver(gw),
		reader:   reader,
	}, cleanup, nil
}
