package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// String returns the option's value, or def when it is not defined.
func String(p Provider, section, option, def string) (string, error) {
	v, err := p.Lookup(section, option)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// Duration reads a duration given either as seconds ("5", "2.5") or in Go
// syntax ("1500ms"). def is returned when the option is not defined.
func Duration(p Provider, section, option string, def time.Duration) (time.Duration, error) {
	v, err := p.Lookup(section, option)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("[%s] %s: %w", section, option, err)
	}
	return d, nil
}

// Int reads an integer option, or def when it is not defined.
func Int(p Provider, section, option string, def int) (int, error) {
	v, err := p.Lookup(section, option)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("[%s] %s: %w", section, option, err)
	}
	return i, nil
}

// maxDurationSeconds is the largest whole number of seconds a time.Duration
// holds.
const maxDurationSeconds = float64(math.MaxInt64 / int64(time.Second))

// ParseDuration accepts bare seconds or a Go duration string.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case math.IsNaN(secs) || math.IsInf(secs, 0):
			return 0, fmt.Errorf("invalid duration %q", s)
		case secs < 0:
			return 0, fmt.Errorf("negative duration %q", s)
		case secs > maxDurationSeconds:
			return 0, fmt.Errorf("duration %q out of range", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
