package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adsbtrack/internal/app"
	"adsbtrack/internal/config"
	"adsbtrack/internal/logging"
	"adsbtrack/internal/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the values shared by the root and replay commands
type cli struct {
	flags       *config.Flags
	showVersion bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "adsbtrack",
		Short: "ADS-B decoder and aircraft tracker",
		Long: `ADS-B decoder and aircraft tracker.

Reads Mode S frames from a Beast TCP feed, validates their CRC, decodes
identification, position, velocity and status messages into aircraft tracks,
and writes BaseStation (SBS) messages, MQTT and WebSocket updates and
Prometheus metrics.

Example usage:
  adsbtrack --beast localhost:30005 --lat 52.31 --lon 4.76 --log-dir ./logs
  adsbtrack replay capture.csv --stdout`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.showVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}
			return c.run(cmd, "")
		},
	}

	c.flags = config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.Flags().BoolVar(&c.showVersion, "version", false, "Show version information")

	replayCmd := &cobra.Command{
		Use:   "replay <file.csv>",
		Short: "Decode frames from a CSV capture",
		Long: `Decode frames from a CSV capture with Data and Correlation columns,
such as a file written with --frame-log. Frames are stamped with the time
they are replayed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, args[0])
		},
	}
	rootCmd.AddCommand(replayCmd)

	return rootCmd
}

// run starts the application. When a capture file is named it replaces the
// Beast feed and the application stops at the end of the file.
func (c *cli) run(cmd *cobra.Command, capture string) error {
	cfg, err := c.flags.Resolve(cmd.Flags())
	if err != nil {
		return err
	}

	var file *os.File
	if capture != "" {
		file, err = os.Open(capture)
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer file.Close()
	}

	logger, closer, err := logging.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	application := app.NewApplication(cfg, logger)
	application.SetStdout(cmd.OutOrStdout())
	if file != nil {
		logger.WithField("file", capture).Info("Replaying capture")
		application.AddSource(source.NewReplay(file, logger))
	}
	return application.Start()
}
