package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridadapter/config"
	"gridadapter/internal/logging"
	"gridadapter/simserver"
)

func main() {
	var (
		configPath string
		logLevel   string
		jsonLogs   bool
	)

	rootCmd := &cobra.Command{
		Use:   "simserver",
		Short: "Runs the grid-equipment simulation server",
		Long: `simserver reads an <adapters> configuration document and starts one
listener per declared entry, speaking the RTDS binary, PSCAD line-text,
or framed simulation dialect depending on its type, and seeds each
listener's state/command tables from the document's initial values.`,
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

	rootCmd.AddCommand(newStatusCmd(&configPath))

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

	s := simserver.New()
	for _, spec := range specs {
		if err := s.StartListener(spec); err != nil {
			return fmt.Errorf("start listener %q: %w", spec.Identifier, err)
		}
		logging.WithAdapter(spec.Identifier).WithField("type", spec.Type).Info("simserver: listener started")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Log.Info("simserver: shutting down")
	return s.Close()
}

// newStatusCmd builds a one-shot "status" subcommand. Since the
// listeners only exist inside the running daemon process, this prints
// what a fresh start would look like from configPath rather than
// querying a live process — useful for validating a config document
// before launch.
func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Validate a configuration document and print its listener summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(*configPath)
			if err != nil {
				return fmt.Errorf("open config: %w", err)
			}
			defer f.Close()

			specs, err := config.Parse(f)
			if err != nil {
				return fmt.Errorf("parse config: %w", err)
			}

			s := simserver.New()
			for _, spec := range specs {
				if err := s.StartListener(spec); err != nil {
					return fmt.Errorf("start listener %q: %w", spec.Identifier, err)
				}
			}
			defer s.Close()

			fmt.Println(s.StatusString())
			return nil
		},
	}
}
