// Package codec converts between application values and their serialized
// JSON form.
//
// Values travel as json.RawMessage through the engine and the wire and
// are decoded only at the Store API boundary. Generic decoding yields
// nil, bool, int64, uint64, float64, string, []any and map[string]any.
// Integral numbers decode to int64, or uint64 above math.MaxInt64, so
// ids and counters beyond 2^53 survive a round trip.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// Snapshot is the full key/value map of one App, values kept serialized.
type Snapshot = map[string]json.RawMessage

// ErrMalformed indicates bytes that are not a valid encoding. Callers map
// it to Corruption (persisted data) or ProtocolError (wire data).
var ErrMalformed = errors.New("codec: malformed data")

// Marshal serializes v. Unsupported values (channels, functions, NaN,
// cyclic structures) fail with ErrInvalidValue.
func Marshal(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, domain.ErrInvalidValue.WithDetails("raw message is not valid json")
		}
		return compact(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, domain.ErrInvalidValue.Wrap(err)
	}
	return b, nil
}

// Unmarshal decodes raw into a generic JSON tree. Numbers without a
// fraction or exponent become int64 (uint64 when positive and too large),
// everything else numeric becomes float64.
func Unmarshal(raw []byte) (any, error) {
	var v any
	if err := decode(raw, &v, true); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// DecodeInto decodes raw into target. Trailing data is an error.
func DecodeInto(raw []byte, target any) error {
	return decode(raw, target, false)
}

func decode(raw []byte, target any, useNumber bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	return nil
}

// normalize replaces json.Number leaves in place.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		return number(x)
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
	}
	return v
}

func number(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of float64 range; keep the literal.
		return n
	}
	return f
}

// Valid reports whether raw is a single well-formed JSON value.
func Valid(raw []byte) bool {
	return json.Valid(raw)
}

// EncodeSnapshot serializes an App snapshot as an indented JSON object
// with keys in sorted order.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, domain.ErrInvalidValue.Wrap(err)
	}
	return append(b, '\n'), nil
}

// DecodeSnapshot parses bytes produced by EncodeSnapshot. Values come
// back compacted. Anything other than a single JSON object fails with
// ErrMalformed.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: snapshot is not a json object", ErrMalformed)
	}
	var s Snapshot
	if err := DecodeInto(trimmed, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = Snapshot{}
	}
	for k, v := range s {
		c, err := compact(v)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrMalformed, k, err)
		}
		s[k] = c
	}
	return s, nil
}

// Clone returns a deep copy of s so callers can mutate it freely.
func Clone(s Snapshot) Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func compact(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, domain.ErrInvalidValue.Wrap(err)
	}
	return buf.Bytes(), nil
}
