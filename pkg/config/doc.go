// Package config resolves (section, option) settings from layered sources.
//
// A Chain tries its sources in order and returns the first hit. The usual
// chain is the process environment followed by a set of merged files:
//
//	OUTPUT_SOCKETLOG_ADDRESS=collector:3456   # wins over any file
//
//	# etc/socketship.toml
//	[output_socketlog]
//	address = "${collector:host}:3456"
//	timeout = 5
//
// Environment keys are the upper-cased "section_option". File values support
// extended interpolation: ${option} refers to the same section (or DEFAULT),
// ${section:option} to any section, and $$ is a literal dollar sign. Files
// may be TOML, YAML or JSON with comments; later files override earlier ones
// option by option.
package config
