// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// PARAMETERS
// =============================================================================

// Parameters is the JSON object sent as "parameters" with every chat message.
// Numbers are kept as json.Number so values survive re-encoding unchanged.
//
// The canonical shape nests tuning values under "options":
//
//	{"options": {"num_predict": 1000, "temperature": 0.7, "top_p": 0.9}}
type Parameters map[string]any

// ErrNotObject is returned when parameter text is valid JSON but not an object.
var ErrNotObject = errors.New("parameters must be a JSON object")

// DefaultParameters returns the startup and reset parameter object.
func DefaultParameters() Parameters {
	return Parameters{
		"options": map[string]any{
			"temperature": json.Number("0.7"),
			"num_predict": json.Number("1000"),
			"top_p":       json.Number("0.9"),
		},
	}
}

// ParseParameters parses text as a single JSON object.
func ParseParameters(text string) (Parameters, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON: unexpected data after object")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Parameters(obj), nil
}

// Merge returns a new object with other's top-level keys laid over p.
// Nested objects are replaced wholesale, not merged.
func (p Parameters) Merge(other Parameters) Parameters {
	out := make(Parameters, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	cp, err := ParseParameters(string(p.JSON()))
	if err != nil {
		// Only reachable for values that cannot round-trip, which Parameters never holds.
		return p.Merge(nil)
	}
	return cp
}

// JSON returns the compact encoding sent on the wire.
func (p Parameters) JSON() json.RawMessage {
	if p == nil {
		return json.RawMessage("{}")
	}
	data, err := encode(p, "")
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// Text returns the object pretty-printed with two-space indentation, the form
// shown in the parameters editor. Keys are sorted.
func (p Parameters) Text() string {
	if p == nil {
		p = Parameters{}
	}
	data, err := encode(p, "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// =============================================================================
// TYPED ACCESS
// =============================================================================

// TuningOptions is the typed view of the recognized keys under "options".
type TuningOptions struct {
	Temperature    float64
	HasTemperature bool
	NumPredict     int
	HasNumPredict  bool
	TopP           float64
	HasTopP        bool
}

// Options reads the recognized tuning keys. Missing or non-numeric values
// leave the corresponding Has flag false.
func (p Parameters) Options() TuningOptions {
	var opts TuningOptions
	nested, ok := p["options"].(map[string]any)
	if !ok {
		return opts
	}
	opts.Temperature, opts.HasTemperature = asFloat(nested["temperature"])
	opts.TopP, opts.HasTopP = asFloat(nested["top_p"])
	if f, ok := asFloat(nested["num_predict"]); ok && f == float64(int(f)) {
		opts.NumPredict, opts.HasNumPredict = int(f), true
	}
	return opts
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
