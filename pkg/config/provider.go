package config

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSection supplies fallback options for every section of a file.
const DefaultSection = "DEFAULT"

// maxInterpolationDepth bounds nested ${...} references.
const maxInterpolationDepth = 10

// ErrNotFound is returned when no source defines the requested option.
var ErrNotFound = errors.New("config: option not found")

// Provider looks up a single setting.
type Provider interface {
	// Lookup returns the resolved value, or an error wrapping ErrNotFound.
	Lookup(section, option string) (string, error)
}

// Source is one lookup strategy of a Chain.
type Source interface {
	// Get returns the raw value of an option and whether it is defined.
	Get(section, option string) (string, bool)
}

// verbatimSource is implemented by sources whose values are never
// interpolated.
type verbatimSource interface {
	Verbatim() bool
}

// InterpolationError reports a ${...} reference that cannot be resolved.
type InterpolationError struct {
	Section string
	Option  string
	Reason  string
}

func (e *InterpolationError) Error() string {
	return fmt.Sprintf("config: interpolating [%s] %s: %s", e.Section, e.Option, e.Reason)
}

// Chain is a Provider trying each Source in order.
type Chain struct {
	sources []Source
}

// NewChain creates a chain; earlier sources take precedence.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// Prepend returns a chain consulting sources before the ones of c.
func (c *Chain) Prepend(sources ...Source) *Chain {
	all := make([]Source, 0, len(sources)+len(c.sources))
	all = append(all, sources...)
	return &Chain{sources: append(all, c.sources...)}
}

// Lookup implements Provider.
func (c *Chain) Lookup(section, option string) (string, error) {
	v, verbatim, ok := c.raw(section, option)
	if !ok {
		return "", fmt.Errorf("%w: [%s] %s", ErrNotFound, section, option)
	}
	if verbatim {
		return v, nil
	}
	return c.interpolate(section, option, v, 1)
}

// raw returns the first defined value and whether its source is verbatim.
func (c *Chain) raw(section, option string) (value string, verbatim, ok bool) {
	for _, src := range c.sources {
		v, ok := src.Get(section, option)
		if !ok {
			continue
		}
		vs, isVerbatim := src.(verbatimSource)
		return v, isVerbatim && vs.Verbatim(), true
	}
	return "", false, false
}

func (c *Chain) interpolate(section, option, value string, depth int) (string, error) {
	if depth > maxInterpolationDepth {
		return "", &InterpolationError{Section: section, Option: option, Reason: "too many nested references"}
	}
	if !strings.Contains(value, "$") {
		return value, nil
	}

	var b strings.Builder
	rest := value
	for {
		i := strings.IndexByte(rest, '$')
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i:]

		if len(rest) < 2 {
			return "", &InterpolationError{Section: section, Option: option, Reason: "'$' must be followed by '$' or '{'"}
		}
		switch rest[1] {
		case '$':
			b.WriteByte('$')
			rest = rest[2:]
		case '{':
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return "", &InterpolationError{Section: section, Option: option, Reason: fmt.Sprintf("unterminated reference %q", rest)}
			}
			ref := rest[2:end]
			rest = rest[end+1:]

			refSection, refOption := section, ref
			if parts := strings.Split(ref, ":"); len(parts) == 2 {
				refSection, refOption = parts[0], parts[1]
			} else if len(parts) > 2 || ref == "" {
				return "", &InterpolationError{Section: section, Option: option, Reason: fmt.Sprintf("malformed reference ${%s}", ref)}
			}

			v, verbatim, ok := c.raw(refSection, refOption)
			if !ok {
				return "", &InterpolationError{Section: section, Option: option, Reason: fmt.Sprintf("${%s} is not defined", ref)}
			}
			if verbatim {
				b.WriteString(v)
				continue
			}
			resolved, err := c.interpolate(refSection, refOption, v, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteString(resolved)
		default:
			return "", &InterpolationError{Section: section, Option: option, Reason: "'$' must be followed by '$' or '{'"}
		}
	}
	return b.String(), nil
}
