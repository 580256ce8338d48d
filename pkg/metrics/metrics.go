// Package metrics exposes shipper activity as Prometheus metrics.
//
//	obs := metrics.NewObserver(metrics.WithRegistry(reg))
//	s, err := shipper.New(cfg, shipper.WithObserver(obs))
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/socketship/pkg/conn"
	"github.com/bft-labs/socketship/pkg/shipper"
)

// Config configures the Prometheus observer.
type Config struct {
	// Namespace is the metrics namespace (default: "socketship").
	Namespace string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for send duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the metrics.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus observer.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the send duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "socketship",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Observer implements shipper.Observer with Prometheus collectors.
type Observer struct {
	framesSent       prometheus.Counter
	bytesSent        prometheus.Counter
	sendErrors       *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	connects         prometheus.Counter
	sendDuration     prometheus.Histogram
}

var _ shipper.Observer = (*Observer)(nil)

// NewObserver registers the shipper metrics and returns an observer feeding
// them. Registering twice on the same registry panics, as promauto does.
func NewObserver(opts ...Option) *Observer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Observer{
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_sent_total",
			Help:        "Total number of frames written to the collector",
			ConstLabels: cfg.ConstLabels,
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "bytes_sent_total",
			Help:        "Total number of bytes written to the collector",
			ConstLabels: cfg.ConstLabels,
		}),
		sendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "send_errors_total",
			Help:        "Failed delivery attempts by kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "delivery_failures_total",
			Help:        "Events given up on after all retries",
			ConstLabels: cfg.ConstLabels,
		}),
		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connects_total",
			Help:        "Connections established to the collector",
			ConstLabels: cfg.ConstLabels,
		}),
		sendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "send_duration_seconds",
			Help:        "Time to connect (if needed) and write one frame",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
	}
}

func (o *Observer) OnConnect(string) {
	o.connects.Inc()
}

func (o *Observer) OnSend(bytes int, duration time.Duration) {
	o.framesSent.Inc()
	o.bytesSent.Add(float64(bytes))
	o.sendDuration.Observe(duration.Seconds())
}

func (o *Observer) OnSendError(err error, attempt int) {
	o.sendErrors.WithLabelValues(errorKind(err)).Inc()
}

func (o *Observer) OnDeliveryFailure(*shipper.DeliveryError) {
	o.deliveryFailures.Inc()
}

// errorKind classifies an attempt failure for the kind label.
func errorKind(err error) string {
	var ce *conn.ConnectError
	var we *conn.WriteError
	switch {
	case errors.As(err, &ce):
		return "connect"
	case errors.As(err, &we):
		return "write"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
