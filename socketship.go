// Package socketship ships honeypot events to a remote collector as
// newline-delimited JSON over a TCP connection.
//
// Example usage:
//
//	cfg, err := socketship.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := socketship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//	err = s.Write(ctx, socketship.Event{"eventid": "cowrie.session.connect"})
package socketship

import (
	"github.com/bft-labs/socketship/pkg/config"
	"github.com/bft-labs/socketship/pkg/frame"
	"github.com/bft-labs/socketship/pkg/shipper"
)

// Shipper delivers events to one collector.
type Shipper = shipper.Shipper

// Event is one structured record.
type Event = frame.Event

// Endpoint is the collector address and the timeout applied to its I/O.
type Endpoint = shipper.Endpoint

// Option configures a Shipper.
type Option = shipper.Option

// DeliveryError carries an event that could not be delivered.
type DeliveryError = shipper.DeliveryError

// ErrClosed is returned by Write after Close.
var ErrClosed = shipper.ErrClosed

// New builds a Shipper from the [output_socketlog] section of cfg.
func New(cfg config.Provider, opts ...Option) (*Shipper, error) {
	return shipper.New(cfg, opts...)
}

// NewWithEndpoint builds a Shipper for an already resolved endpoint.
func NewWithEndpoint(ep Endpoint, opts ...Option) (*Shipper, error) {
	return shipper.NewWithEndpoint(ep, opts...)
}

// LoadConfig reads the standard configuration files found under root and
// layers the environment over them.
func LoadConfig(root string) (*config.Chain, error) {
	return config.Load(config.CandidatePaths(root)...)
}
