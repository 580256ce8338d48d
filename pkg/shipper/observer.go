package shipper

import "time"

// Observer receives notifications from a Shipper. Calls are made
// synchronously from Write, so implementations should return quickly.
type Observer interface {
	// OnConnect is called after a new connection has been established.
	OnConnect(address string)

	// OnSend is called after a frame has been written in full.
	OnSend(bytes int, duration time.Duration)

	// OnSendError is called for every failed attempt, including ones that
	// will be retried. attempt starts at 1.
	OnSendError(err error, attempt int)

	// OnDeliveryFailure is called when Write gives up on an event.
	OnDeliveryFailure(err *DeliveryError)
}

// NopObserver ignores every notification. Embed it to implement only some
// methods.
type NopObserver struct{}

func (NopObserver) OnConnect(string)                 {}
func (NopObserver) OnSend(int, time.Duration)        {}
func (NopObserver) OnSendError(error, int)           {}
func (NopObserver) OnDeliveryFailure(*DeliveryError) {}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnConnect(address string) {
	for _, o := range m {
		o.OnConnect(address)
	}
}

func (m MultiObserver) OnSend(bytes int, duration time.Duration) {
	for _, o := range m {
		o.OnSend(bytes, duration)
	}
}

func (m MultiObserver) OnSendError(err error, attempt int) {
	for _, o := range m {
		o.OnSendError(err, attempt)
	}
}

func (m MultiObserver) OnDeliveryFailure(err *DeliveryError) {
	for _, o := range m {
		o.OnDeliveryFailure(err)
	}
}
