package config

import (
	"os"
	"strings"
)

// EnvSource resolves options from environment variables named
// SECTION_OPTION in upper case.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// Env returns a source backed by the process environment.
func Env() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

// EnvFunc returns a source backed by an arbitrary lookup function.
func EnvFunc(lookup func(string) (string, bool)) *EnvSource {
	return &EnvSource{lookup: lookup}
}

// EnvKey returns the variable name consulted for (section, option).
func EnvKey(section, option string) string {
	return strings.ToUpper(section + "_" + option)
}

// Get implements Source.
func (e *EnvSource) Get(section, option string) (string, bool) {
	return e.lookup(EnvKey(section, option))
}

// Verbatim reports that environment values are used as-is.
func (e *EnvSource) Verbatim() bool { return true }
