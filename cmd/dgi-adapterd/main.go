package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridadapter/config"
	"gridadapter/devicemgr"
	"gridadapter/eventbus"
	"gridadapter/factory"
	"gridadapter/internal/logging"
	"gridadapter/table"
)

func main() {
	var (
		configPath string
		logLevel   string
		jsonLogs   bool
	)

	rootCmd := &cobra.Command{
		Use:   "dgi-adapterd",
		Short: "Runs the DGI device adapter daemon",
		Long: `dgi-adapterd reads an <adapters> configuration document, builds one
adapter per declared entry (RTDS, PSCAD, or PNP), and keeps them running
until the process receives a termination signal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonLogs {
				logging.SetJSON()
			}
			if err := logging.SetLevel(logLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			return run(configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the adapters XML configuration (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logrus level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit JSON-formatted logs")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	specs, err := config.Parse(f)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	bus := eventbus.NewBus(64)
	mgr := devicemgr.New(bus)
	tables := table.NewPair()
	fac := factory.New(mgr, bus, tables)

	for _, spec := range specs {
		if _, err := fac.Create(spec); err != nil {
			logging.WithAdapter(spec.Identifier).WithError(err).Error("dgi-adapterd: failed to create adapter")
			return fmt.Errorf("create adapter %q: %w", spec.Identifier, err)
		}
	}

	logging.Log.WithField("count", fac.Count()).Info("dgi-adapterd: adapters running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Log.Info("dgi-adapterd: shutting down")
	for _, spec := range specs {
		fac.Remove(spec.Identifier)
	}
	return nil
}
