package domain

import (
	"fmt"
	"time"
)

// ValueType selects how raw observation values are coerced for an attribute.
type ValueType string

const (
	ValueTypeText ValueType = "TEXT"
	ValueTypeInt  ValueType = "INT"
	ValueTypeBool ValueType = "BOOL"
	ValueTypeEnum ValueType = "ENUM"
)

// Valid reports whether t is one of the known value types.
func (t ValueType) Valid() bool {
	switch t {
	case ValueTypeText, ValueTypeInt, ValueTypeBool, ValueTypeEnum:
		return true
	}
	return false
}

// Status is the review state of an attribute definition.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusPendingReview Status = "PENDING_REVIEW"
)

// Scopes used by the canonical catalog. Scope is informational only.
const (
	ScopeSelf       = "SELF"
	ScopePreference = "PREFERENCE"
)

// Attribute is a named, typed slot in the schema
type Attribute struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Scope       string    `json:"scope"`
	ValueType   ValueType `json:"value_type"`
	IsCanonical bool      `json:"is_canonical"`
	IsPrimary   bool      `json:"is_primary"`
	Status      Status    `json:"status"`
	Options     []Option  `json:"options,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Option is one enumerated value of an ENUM attribute
type Option struct {
	ID          int64  `json:"id"`
	AttributeID int64  `json:"attribute_id"`
	Code        string `json:"code"`
	Label       string `json:"label"`
}

// AttributeValue is the single stored observation for a (subject, attribute) pair
type AttributeValue struct {
	ID          int64     `json:"id"`
	SubjectID   int64     `json:"subject_id"`
	AttributeID int64     `json:"attribute_id"`
	Value       Value     `json:"value"`
	Confidence  float64   `json:"confidence"`
	Evidence    *string   `json:"evidence,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubjectValue is a stored value joined with its attribute, for display.
type SubjectValue struct {
	AttributeValue
	AttributeKey   string `json:"attribute_key"`
	AttributeTitle string `json:"attribute_title"`
	OptionCode     string `json:"option_code,omitempty"`
	OptionLabel    string `json:"option_label,omitempty"`
}

// Display renders the value the way a person would read it.
func (v SubjectValue) Display() string {
	if v.Value.Kind() == KindOption && v.OptionLabel != "" {
		return v.OptionLabel
	}
	return v.Value.String()
}

// Observation is one decoded (key, value) fact about a subject.
type Observation struct {
	Key        string
	Label      string
	Value      string
	Confidence float64
	Evidence   *string
	Scope      string
}

func (o Observation) String() string {
	return fmt.Sprintf("%s=%q", o.Key, o.Value)
}
