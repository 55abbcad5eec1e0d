package attribute

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pbaille/attrs/internal/domain"
)

var signedInt = regexp.MustCompile(`-?\d+`)

var (
	affirmative = map[string]bool{"yes": true, "true": true, "1": true, "да": true}
	negative    = map[string]bool{"no": true, "false": true, "0": true, "нет": true}
)

// Coerce converts raw into the typed value stored for attr. Values that do
// not fit the declared type are kept as text; only storage failures while
// looking up enum options return an error.
func Coerce(ctx context.Context, repo Repository, attr *domain.Attribute, raw, optionCode string) (domain.Value, error) {
	if attr.ValueType == domain.ValueTypeEnum {
		opt, err := ResolveOption(ctx, repo, attr.ID, optionCode, raw)
		if err != nil {
			return domain.Value{}, err
		}
		if opt != nil {
			return domain.OptionValue(opt.ID), nil
		}
		return domain.TextValue(raw), nil
	}
	return CoerceScalar(attr.ValueType, raw), nil
}

// CoerceScalar handles the value types that need no option lookup.
func CoerceScalar(vt domain.ValueType, raw string) domain.Value {
	switch vt {
	case domain.ValueTypeInt:
		if n, ok := ExtractInt(raw); ok {
			return domain.IntValue(n)
		}
	case domain.ValueTypeBool:
		if b, ok := ExtractBool(raw); ok {
			return domain.BoolValue(b)
		}
	}
	return domain.TextValue(raw)
}

// ExtractInt parses the first signed integer in s, as in "27 years".
func ExtractInt(s string) (int64, bool) {
	m := signedInt.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractBool recognizes yes/no answers in English and Russian.
func ExtractBool(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if affirmative[s] {
		return true, true
	}
	if negative[s] {
		return false, true
	}
	return false, false
}
