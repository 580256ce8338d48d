package frame

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Delimiter terminates every frame.
const Delimiter = '\n'

// maxDepth bounds how deep an event may nest. Cyclic events hit it.
const maxDepth = 1000

// Event is a mapping-shaped telemetry record.
type Event = map[string]any

// EncodingError reports an event that cannot be represented as JSON.
// It concerns one event only and never affects connection state.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode event: %v", e.Err)
	}
	return fmt.Sprintf("encode event at %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Option configures an Encoder.
type Option func(*Encoder)

// WithCompact emits JSON without spaces after separators.
func WithCompact() Option {
	return func(e *Encoder) { e.compact = true }
}

// Encoder turns events into frames. The zero value is ready to use.
type Encoder struct {
	compact bool
}

// NewEncoder creates an encoder with the given options.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEncoder Encoder

// Encode encodes event with the default encoder.
func Encode(event Event) ([]byte, error) {
	return defaultEncoder.Encode(event)
}

// Encode returns the frame for event: its JSON encoding plus Delimiter.
func (e *Encoder) Encode(event Event) ([]byte, error) {
	if event == nil {
		event = Event{}
	}
	clean, err := normalize(event, "", 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// json.Encoder appends the '\n' delimiter itself.
	if err := enc.Encode(clean); err != nil {
		return nil, &EncodingError{Err: err}
	}
	body := buf.Bytes()[:buf.Len()-1]
	if bytes.IndexByte(body, Delimiter) >= 0 {
		return nil, &EncodingError{Err: fmt.Errorf("delimiter inside encoded body")}
	}

	if e.compact {
		return buf.Bytes(), nil
	}
	out := spaced(body)
	return append(out, Delimiter), nil
}

// normalize walks v and rejects values JSON cannot carry faithfully.
// encoding/json would silently replace invalid UTF-8 and base64 byte slices,
// so both are handled here.
func normalize(v any, path string, depth int) (any, error) {
	if depth > maxDepth {
		return nil, &EncodingError{Path: path, Err: fmt.Errorf("nesting deeper than %d (cyclic event?)", maxDepth)}
	}

	switch t := v.(type) {
	case nil, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("non-finite number %v", t)}
		}
		return v, nil
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("non-finite number %v", t)}
		}
		return v, nil
	case string:
		if !utf8.ValidString(t) {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("string is not valid UTF-8")}
		}
		return v, nil
	case []byte:
		if !utf8.Valid(t) {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("binary data is not valid UTF-8 text")}
		}
		return string(t), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if !utf8.ValidString(k) {
				return nil, &EncodingError{Path: path, Err: fmt.Errorf("key %q is not valid UTF-8", k)}
			}
			n, err := normalize(val, join(path, k), depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val, fmt.Sprintf("%s[%d]", path, i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []string:
		for i, s := range t {
			if !utf8.ValidString(s) {
				return nil, &EncodingError{Path: fmt.Sprintf("%s[%d]", path, i), Err: fmt.Errorf("string is not valid UTF-8")}
			}
		}
		return v, nil
	}

	return normalizeValue(reflect.ValueOf(v), path, depth, false)
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// normalizeValue handles typed values: named scalars, typed maps and slices,
// pointers and structs. Maps and slices are rebuilt as map[string]any and
// []any so byte slices become strings. Structs are only checked (strict) and
// handed to encoding/json unchanged, which would base64 any []byte inside
// them, so strict mode rejects byte slices outright.
func normalizeValue(rv reflect.Value, path string, depth int, strict bool) (any, error) {
	if depth > maxDepth {
		return nil, &EncodingError{Path: path, Err: fmt.Errorf("nesting deeper than %d (cyclic event?)", maxDepth)}
	}
	if !rv.IsValid() {
		return nil, nil
	}

	t := rv.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		return value(rv, strict), nil
	}

	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return value(rv, strict), nil

	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("non-finite number %v", f)}
		}
		return value(rv, strict), nil

	case reflect.String:
		if !utf8.ValidString(rv.String()) {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("string is not valid UTF-8")}
		}
		return value(rv, strict), nil

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem(), path, depth+1, strict)

	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := mapKey(iter.Key())
			if err != nil {
				return nil, &EncodingError{Path: path, Err: err}
			}
			n, err := normalizeValue(iter.Value(), join(path, key), depth+1, strict)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil

	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			if strict {
				return nil, &EncodingError{Path: path, Err: fmt.Errorf("binary data inside a struct would be sent as base64")}
			}
			b := rv.Bytes()
			if !utf8.Valid(b) {
				return nil, &EncodingError{Path: path, Err: fmt.Errorf("binary data is not valid UTF-8 text")}
			}
			return string(b), nil
		}
		return normalizeList(rv, path, depth, strict)

	case reflect.Array:
		return normalizeList(rv, path, depth, strict)

	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			name := f.Name
			if tag := f.Tag.Get("json"); tag == "-" {
				continue
			} else if n, _, _ := strings.Cut(tag, ","); n != "" {
				name = n
			}
			if _, err := normalizeValue(rv.Field(i), join(path, name), depth+1, true); err != nil {
				return nil, err
			}
		}
		return value(rv, strict), nil
	}

	return nil, &EncodingError{Path: path, Err: fmt.Errorf("unsupported type %s", t)}
}

func normalizeList(rv reflect.Value, path string, depth int, strict bool) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		n, err := normalizeValue(rv.Index(i), fmt.Sprintf("%s[%d]", path, i), depth+1, strict)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// value returns the Go value behind rv. Values reached in strict mode are
// only checked, and may come from unexported embedded fields.
func value(rv reflect.Value, strict bool) any {
	if strict || !rv.CanInterface() {
		return nil
	}
	return rv.Interface()
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() != reflect.String && k.CanInterface() && k.Type().Implements(textMarshalerType) {
		tm := k.Interface().(encoding.TextMarshaler)
		b, err := tm.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	switch k.Kind() {
	case reflect.String:
		if !utf8.ValidString(k.String()) {
			return "", fmt.Errorf("key %q is not valid UTF-8", k.String())
		}
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("unsupported map key type %s", k.Type())
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// spaced inserts a space after every ',' and ':' outside string literals of
// compact JSON.
func spaced(compact []byte) []byte {
	out := make([]byte, 0, len(compact)+len(compact)/8)
	inString := false
	escaped := false
	for _, c := range compact {
		out = append(out, c)
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',', ':':
			out = append(out, ' ')
		}
	}
	return out
}
