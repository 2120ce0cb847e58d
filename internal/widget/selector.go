// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import "fmt"

// Sentinel selector labels. Both carry an empty value so they can never be
// sent as a model name.
const (
	SentinelNoModels  = "No models available"
	SentinelLoadError = "Error loading models"
)

// Option is one entry in the model selector.
type Option struct {
	Value string
	Label string
}

// Sentinel reports whether the option is a placeholder rather than a model.
func (o Option) Sentinel() bool {
	return o.Value == ""
}

// Selector is the model drop-down. It is not safe for concurrent use; the
// controller guards it.
type Selector struct {
	options  []Option
	selected int
}

// SetModels replaces the options with names and selects the first.
// An empty list installs the "no models" sentinel.
func (s *Selector) SetModels(names []string) {
	if len(names) == 0 {
		s.setSentinel(SentinelNoModels)
		return
	}
	s.options = make([]Option, 0, len(names))
	for _, n := range names {
		s.options = append(s.options, Option{Value: n, Label: n})
	}
	s.selected = 0
}

func (s *Selector) setSentinel(label string) {
	s.options = []Option{{Value: "", Label: label}}
	s.selected = 0
}

// Options returns a copy of the current options.
func (s *Selector) Options() []Option {
	out := make([]Option, len(s.options))
	copy(out, s.options)
	return out
}

// Value returns the selected model name, or "" when nothing usable is
// selected.
func (s *Selector) Value() string {
	if s.selected < 0 || s.selected >= len(s.options) {
		return ""
	}
	return s.options[s.selected].Value
}

// Label returns the selected option's label.
func (s *Selector) Label() string {
	if s.selected < 0 || s.selected >= len(s.options) {
		return ""
	}
	return s.options[s.selected].Label
}

// Select picks the option whose value is name.
func (s *Selector) Select(name string) error {
	for i, o := range s.options {
		if o.Value == name && !o.Sentinel() {
			s.selected = i
			return nil
		}
	}
	return fmt.Errorf("model %q is not in the list", name)
}

// Cycle advances to the next option, wrapping around.
func (s *Selector) Cycle() string {
	if len(s.options) == 0 {
		return ""
	}
	s.selected = (s.selected + 1) % len(s.options)
	return s.Value()
}
