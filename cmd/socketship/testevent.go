package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bft-labs/socketship/pkg/frame"
	"github.com/bft-labs/socketship/pkg/log"
	"github.com/bft-labs/socketship/pkg/shipper"
)

func newTestEventCommand(logger log.Logger) *cobra.Command {
	s := &settings{}
	cmd := &cobra.Command{
		Use:   "test-event",
		Short: "Send one synthetic session event to check the collector path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.load(cmd)
			if err != nil {
				return err
			}
			sh, err := shipper.New(cfg, s.options(shipper.WithObserver(logObserver{logger: logger}))...)
			if err != nil {
				return err
			}
			defer sh.Close()

			event := testEvent(time.Now())
			if err := sh.Write(cmd.Context(), event); err != nil {
				return err
			}
			logger.Info("test event sent",
				log.String("address", sh.Endpoint().Address),
				log.String("session", event["session"].(string)),
			)
			return nil
		},
	}
	s.register(cmd.Flags())
	return cmd
}

// testEvent builds a session-connect event shaped like real honeypot output.
func testEvent(now time.Time) frame.Event {
	return frame.Event{
		"eventid":   "socketship.test",
		"message":   "test event from socketship",
		"session":   uuid.NewString(),
		"src_ip":    "127.0.0.1",
		"sensor":    "socketship",
		"timestamp": now.UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
}
