package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/monitoring"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "smartcharge",
	Short:         "OCPP smart charging composite schedule service",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	defer coremon.Flush(2 * time.Second)

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
