package main

import (
	"time"

	"github.com/bft-labs/socketship/pkg/log"
	"github.com/bft-labs/socketship/pkg/shipper"
)

// logObserver reports shipper activity through the CLI logger.
type logObserver struct {
	logger log.Logger
}

func (o logObserver) OnConnect(address string) {
	o.logger.Info("connected to collector", log.String("address", address))
}

func (o logObserver) OnSend(bytes int, duration time.Duration) {
	o.logger.Debug("sent frame", log.Int("bytes", bytes), log.Duration("duration", duration))
}

func (o logObserver) OnSendError(err error, attempt int) {
	o.logger.Warn("send attempt failed", log.Err(err), log.Int("attempt", attempt))
}

func (o logObserver) OnDeliveryFailure(err *shipper.DeliveryError) {
	o.logger.Error("event not delivered", log.Err(err.Err), log.Int("attempts", err.Attempts))
}
