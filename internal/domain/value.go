package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags which variant of a Value is authoritative.
type ValueKind string

const (
	KindText   ValueKind = "TEXT"
	KindInt    ValueKind = "INT"
	KindBool   ValueKind = "BOOL"
	KindOption ValueKind = "OPTION"
)

// Value is a tagged union over the four ways an observation can be stored.
// Exactly one variant is set; the zero Value is an empty text value.
type Value struct {
	kind     ValueKind
	text     string
	integer  int64
	boolean  bool
	optionID int64
}

func TextValue(s string) Value   { return Value{kind: KindText, text: s} }
func IntValue(n int64) Value     { return Value{kind: KindInt, integer: n} }
func BoolValue(b bool) Value     { return Value{kind: KindBool, boolean: b} }
func OptionValue(id int64) Value { return Value{kind: KindOption, optionID: id} }

// Kind returns the authoritative variant.
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return KindText
	}
	return v.kind
}

func (v Value) Text() (string, bool) {
	return v.text, v.Kind() == KindText
}

func (v Value) Int() (int64, bool) {
	return v.integer, v.kind == KindInt
}

func (v Value) Bool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

func (v Value) OptionID() (int64, bool) {
	return v.optionID, v.kind == KindOption
}

func (v Value) String() string {
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(v.integer, 10)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindOption:
		return fmt.Sprintf("option#%d", v.optionID)
	default:
		return v.text
	}
}

type valueJSON struct {
	Kind     ValueKind `json:"kind"`
	Text     *string   `json:"text,omitempty"`
	Int      *int64    `json:"int,omitempty"`
	Bool     *bool     `json:"bool,omitempty"`
	OptionID *int64    `json:"option_id,omitempty"`
}

// MarshalJSON emits the kind plus only the authoritative field.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.Kind()}
	switch v.Kind() {
	case KindInt:
		out.Int = &v.integer
	case KindBool:
		out.Bool = &v.boolean
	case KindOption:
		out.OptionID = &v.optionID
	default:
		out.Text = &v.text
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case KindInt:
		if in.Int == nil {
			return fmt.Errorf("int value without int field")
		}
		*v = IntValue(*in.Int)
	case KindBool:
		if in.Bool == nil {
			return fmt.Errorf("bool value without bool field")
		}
		*v = BoolValue(*in.Bool)
	case KindOption:
		if in.OptionID == nil {
			return fmt.Errorf("option value without option_id field")
		}
		*v = OptionValue(*in.OptionID)
	case KindText, "":
		if in.Text != nil {
			*v = TextValue(*in.Text)
		} else {
			*v = TextValue("")
		}
	default:
		return fmt.Errorf("unknown value kind %q", in.Kind)
	}
	return nil
}
