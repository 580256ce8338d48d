// Package log provides the logging abstraction used by socketship's outer
// layers (the CLI and observers).
//
// The shipping core never logs through this package: a log shipper that
// reports its own failures through itself would recurse. Callers attach an
// observer instead and decide where those reports go.
//
// # Usage
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//	logger.Info("connected", log.String("address", "collector:3456"))
//
// Use NewNoopLogger in tests that do not inspect output.
package log
