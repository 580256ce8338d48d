package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/socketship/pkg/collector"
	"github.com/bft-labs/socketship/pkg/log"
)

func newListenCommand(logger log.Logger) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a collector that prints every received frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := collector.Listen(address)
			if err != nil {
				return err
			}
			defer c.Close()
			logger := logger.With(log.String("cmd", "listen"))
			logger.Info("collector listening", log.String("address", c.Addr()))

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					if n := c.Partial(); n > 0 {
						logger.Warn("discarded incomplete frames", log.Int64("bytes", n))
					}
					return nil
				case remote := <-c.Accepted():
					logger.Info("shipper connected", log.String("remote", remote))
				case f, ok := <-c.Frames():
					if !ok {
						return nil
					}
					if f.Err != nil {
						logger.Warn("malformed frame", log.String("remote", f.Remote), log.Err(f.Err))
					}
					fmt.Fprintf(out, "%s\n", f.Raw)
				}
			}
		},
	}
	cmd.Flags().StringVar(&address, "address", "127.0.0.1:3456", "address to listen on")
	return cmd
}
