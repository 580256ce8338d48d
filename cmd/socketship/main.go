package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/socketship/pkg/log"
)

const longHelp = `
Ship honeypot events to a remote collector as newline-delimited JSON.

socketship reads settings from the [output_socketlog] section of
etc/socketship.toml.dist, /etc/socketship/socketship.toml, etc/socketship.toml
and socketship.toml (later files win), from OUTPUT_SOCKETLOG_* environment
variables, and from flags, in increasing order of precedence.
`

var exampleUsage = strings.TrimSpace(`
  socketship ship --address collector:3456 < var/log/cowrie/cowrie.json
  socketship ship --config etc/socketship.toml --watch --metrics-addr :9108
  socketship listen --address 127.0.0.1:3456
  socketship test-event --address 127.0.0.1:3456
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	var level string
	logger := log.NewZerologAdapter(zerolog.InfoLevel)

	root := &cobra.Command{
		Use:           "socketship",
		Short:         "Ship honeypot events to a collector over TCP",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			*logger = *log.NewZerologAdapter(lvl)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newShipCommand(logger),
		newListenCommand(logger),
		newTestEventCommand(logger),
	)

	if err := root.Execute(); err != nil {
		logger.Error("socketship", log.Err(err))
		os.Exit(1)
	}
}
