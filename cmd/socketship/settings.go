package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bft-labs/socketship/pkg/config"
	"github.com/bft-labs/socketship/pkg/shipper"
)

// settings holds the flags shared by commands that build a Shipper.
type settings struct {
	configPaths []string
	section     string
	address     string
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	lazy        bool
}

func (s *settings) register(fs *pflag.FlagSet) {
	fs.StringArrayVar(&s.configPaths, "config", nil, "config file to read (repeatable; default: the standard search path)")
	fs.StringVar(&s.section, "section", shipper.DefaultSection, "config section holding the shipper settings")
	fs.StringVar(&s.address, "address", "", "collector address host:port")
	fs.DurationVar(&s.timeout, "timeout", shipper.DefaultTimeout, "connect and send timeout")
	fs.IntVar(&s.retries, "retries", 1, "reconnect-and-resend attempts per event")
	fs.DurationVar(&s.backoff, "backoff", 0, "pause before the first retry, doubled for each further retry")
	fs.BoolVar(&s.lazy, "lazy", false, "connect on the first event instead of at startup")
}

// paths returns the config files to read.
func (s *settings) paths() []string {
	if len(s.configPaths) > 0 {
		return s.configPaths
	}
	return config.CandidatePaths(".")
}

// overrides turns explicitly set flags into the highest-precedence source.
func (s *settings) overrides(cmd *cobra.Command) config.MapSource {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	m := config.MapSource{}
	if changed["address"] {
		m.Set(s.section, "address", s.address)
	}
	if changed["timeout"] {
		m.Set(s.section, "timeout", s.timeout.String())
	}
	if changed["retries"] {
		m.Set(s.section, "retries", strconv.Itoa(s.retries))
	}
	if changed["backoff"] {
		m.Set(s.section, "backoff", s.backoff.String())
	}
	return m
}

// provider layers flag overrides over the environment and the files.
func (s *settings) provider(cmd *cobra.Command, files *config.FileSource) *config.Chain {
	return config.NewChain(s.overrides(cmd), config.Env(), files)
}

func (s *settings) load(cmd *cobra.Command) (*config.Chain, error) {
	files, err := config.LoadFiles(s.paths()...)
	if err != nil {
		return nil, err
	}
	return s.provider(cmd, files), nil
}

func (s *settings) options(extra ...shipper.Option) []shipper.Option {
	opts := []shipper.Option{shipper.WithSection(s.section)}
	if s.lazy {
		opts = append(opts, shipper.WithLazyConnect())
	}
	return append(opts, extra...)
}
