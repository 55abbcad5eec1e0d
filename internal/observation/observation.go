// Package observation decodes raw observation records produced out-of-band
// by the extractor. Every field is untrusted: required fields must be present
// with a usable type, optional fields fall back to defaults when they are
// missing or of the wrong type.
package observation

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

// DefaultConfidence applies when an item carries no usable confidence.
const DefaultConfidence = 1.0

// Parse decodes one raw item into an Observation. It fails with an error
// marked ErrMalformedObservation when the item is not a JSON object, or when
// key or value is missing, empty, or not a scalar.
func Parse(raw json.RawMessage) (domain.Observation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.Observation{}, errors.NewMalformed("item is not a JSON object")
	}

	key, ok := stringField(fields["key"])
	if !ok {
		return domain.Observation{}, errors.NewMalformed("key is missing or not a string")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Observation{}, errors.NewMalformed("key is empty")
	}

	value, ok := scalarField(fields["value"])
	if !ok {
		return domain.Observation{}, errors.NewMalformed("value of %q is missing or not a scalar", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Observation{}, errors.NewMalformed("value of %q is empty", key)
	}

	obs := domain.Observation{
		Key:        key,
		Value:      value,
		Confidence: confidenceField(fields["confidence"]),
		Scope:      domain.ScopeSelf,
	}
	if label, ok := stringField(fields["label"]); ok {
		obs.Label = strings.TrimSpace(label)
	}
	if scope, ok := stringField(fields["scope"]); ok && strings.TrimSpace(scope) != "" {
		obs.Scope = strings.TrimSpace(scope)
	}
	if evidence, ok := stringField(fields["evidence"]); ok {
		if evidence = strings.TrimSpace(evidence); evidence != "" {
			obs.Evidence = &evidence
		}
	}
	return obs, nil
}

// ClampConfidence maps any float onto [0, 1]. NaN becomes DefaultConfidence.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return DefaultConfidence
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// scalarField accepts strings, numbers and booleans. Numbers keep their
// literal spelling so "27" and 27 coerce identically.
func scalarField(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if s, ok := stringField(raw); ok {
		return s, true
	}
	switch raw[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return strconv.FormatBool(b), true
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String(), true
		}
	}
	return "", false
}

func confidenceField(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return DefaultConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return ClampConfidence(f)
	}
	if s, ok := stringField(raw); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return ClampConfidence(f)
		}
	}
	return DefaultConfidence
}
