package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the TP1 watcher in the foreground",
	Long: `Run the TP1 watcher loop without the HTTP server.

The watcher polls owned positions, executes a partial close when the
first take-profit level is reached, moves the stop to break-even, and
records stop-loss closures. Stop with Ctrl-C.

Example:
  tradewatch watch -f tradewatch.yaml --armed`,
	RunE: runWatch,
}

var (
	watchConfigPath string
	watchArmed      bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	watchCmd.Flags().BoolVar(&watchArmed, "armed", false, "arm execution for this run")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(watchConfigPath)
	if err != nil {
		return err
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res := deps.manager.Start(watchArmed)
	if !res.Running {
		return fmt.Errorf("watcher did not start: %s", res.Reason)
	}
	log.Printf("watcher running (pid %d, armed=%v)", res.PID, watchArmed)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received %s, stopping watcher", sig)

	deps.manager.Stop()
	return nil
}
