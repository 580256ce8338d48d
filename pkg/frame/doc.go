// Package frame encodes events into newline-delimited JSON frames.
//
// A frame is the canonical JSON encoding of exactly one event followed by a
// single '\n'. JSON string escaping guarantees the body never contains a raw
// newline, so frame boundaries on the wire are exactly the delimiter
// occurrences.
//
// By default the encoder uses ", " and ": " separators, matching the output
// collectors of this format already parse byte-for-byte:
//
//	{"output": ["this", "is", "a", "test"]}
//
// WithCompact switches to Go's compact form.
package frame
