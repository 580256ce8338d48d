package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bft-labs/socketship/pkg/config"
	"github.com/bft-labs/socketship/pkg/frame"
	"github.com/bft-labs/socketship/pkg/log"
	"github.com/bft-labs/socketship/pkg/metrics"
	"github.com/bft-labs/socketship/pkg/shipper"
)

type shipFlags struct {
	settings
	input       string
	watch       bool
	metricsAddr string
}

func newShipCommand(logger log.Logger) *cobra.Command {
	f := &shipFlags{}
	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Read NDJSON events and ship them to the collector",
		Long: `Read one JSON object per line from --input (stdin by default) and send
each to the configured collector. Lines that are not JSON objects are skipped.
Events that cannot be delivered after the configured retries are logged and
the stream continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShip(cmd, f, logger)
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "event file, - for stdin")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "reload the shipper when a config file changes")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

type shipStats struct {
	sent    int
	failed  int
	skipped int
}

func runShip(cmd *cobra.Command, f *shipFlags, logger log.Logger) error {
	logger = logger.With(log.String("cmd", "ship"), log.String("section", f.section))
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(f.input)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}

	observers := shipper.MultiObserver{logObserver{logger: logger}}
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		observers = append(observers, metrics.NewObserver(metrics.WithRegistry(reg)))
		srv := serveMetrics(f.metricsAddr, reg, logger)
		defer srv.Close()
	}
	opts := f.options(shipper.WithObserver(observers))

	s, err := shipper.New(cfg, opts...)
	if err != nil {
		return err
	}
	live := &liveShipper{current: s}
	defer live.Close()
	logger.Info("shipping events",
		log.String("address", s.Endpoint().Address),
		log.Duration("timeout", s.Endpoint().Timeout),
		log.Int("retries", s.RetryPolicy().Retries),
	)

	if f.watch {
		paths := f.paths()
		if len(paths) == 0 {
			logger.Warn("--watch given but no config file found")
		} else {
			go func() {
				onChange := func(chain *config.Chain) {
					live.reload(ctx, chain.Prepend(f.overrides(cmd)), f.section, opts, logger)
				}
				onError := func(err error) {
					logger.Warn("config reload failed", log.Err(err))
				}
				if err := config.Watch(ctx, paths, config.DefaultDebounce, onChange, onError); err != nil {
					logger.Error("config watch stopped", log.Err(err))
				}
			}()
		}
	}

	stats, err := pump(ctx, in, live, logger)
	logger.Info("done",
		log.Int("sent", stats.sent),
		log.Int("failed", stats.failed),
		log.Int("skipped", stats.skipped),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pump ships every line of r until EOF or ctx is canceled.
func pump(ctx context.Context, r io.Reader, w eventWriter, logger log.Logger) (shipStats, error) {
	var stats shipStats
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		var line []byte
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return stats, fmt.Errorf("read input: %w", err)
				default:
					return stats, nil
				}
			}
			line = l
		}

		event, err := decodeEvent(line)
		if err != nil {
			stats.skipped++
			logger.Warn("skipping input line", log.Err(err))
			continue
		}

		err = w.Write(ctx, event)
		var encErr *frame.EncodingError
		var delErr *shipper.DeliveryError
		switch {
		case err == nil:
			stats.sent++
		case errors.As(err, &encErr):
			stats.skipped++
			logger.Warn("skipping event", log.Err(err))
		case errors.As(err, &delErr):
			stats.failed++
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
		default:
			return stats, err
		}
	}
}

func decodeEvent(line []byte) (frame.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var event frame.Event
	if err := dec.Decode(&event); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("not a JSON object: null")
	}
	return event, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", log.Err(err))
		}
	}()
	logger.Info("serving metrics", log.String("address", addr))
	return srv
}

type eventWriter interface {
	Write(ctx context.Context, event frame.Event) error
}

// liveShipper lets a config reload replace the Shipper between writes.
type liveShipper struct {
	mu      sync.Mutex
	current *shipper.Shipper
}

func (l *liveShipper) Write(ctx context.Context, event frame.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.Write(ctx, event)
}

// reload swaps in a shipper built from p when the endpoint or retry policy
// changed. The old shipper keeps serving if the new one cannot connect.
func (l *liveShipper) reload(ctx context.Context, p config.Provider, section string, opts []shipper.Option, logger log.Logger) {
	ep, err := shipper.ResolveEndpoint(p, section)
	if err != nil {
		logger.Warn("config reload rejected", log.Err(err))
		return
	}
	policy, err := shipper.ResolveRetryPolicy(p, section)
	if err != nil {
		logger.Warn("config reload rejected", log.Err(err))
		return
	}

	l.mu.Lock()
	same := l.current.Endpoint() == ep && l.current.RetryPolicy() == policy
	l.mu.Unlock()
	if same {
		logger.Debug("config reloaded, shipper unchanged")
		return
	}

	nextOpts := append(append([]shipper.Option(nil), opts...), shipper.WithRetryPolicy(policy))
	next, err := shipper.NewWithEndpoint(ep, nextOpts...)
	if err != nil {
		logger.Warn("config reload rejected", log.Err(err))
		return
	}
	// Lazy shippers have not dialed yet.
	if err := next.Start(ctx); err != nil {
		_ = next.Close()
		logger.Warn("config reload rejected", log.Err(err))
		return
	}

	l.mu.Lock()
	old := l.current
	l.current = next
	l.mu.Unlock()
	_ = old.Close()
	logger.Info("shipper reloaded", log.String("address", ep.Address))
}

func (l *liveShipper) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.Close()
}
