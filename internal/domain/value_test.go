package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueVariants(t *testing.T) {
	t.Run("zero value is empty text", func(t *testing.T) {
		var v Value
		assert.Equal(t, KindText, v.Kind())
		s, ok := v.Text()
		assert.True(t, ok)
		assert.Empty(t, s)
	})

	t.Run("only the authoritative accessor reports ok", func(t *testing.T) {
		v := OptionValue(7)
		id, ok := v.OptionID()
		assert.True(t, ok)
		assert.Equal(t, int64(7), id)

		_, ok = v.Text()
		assert.False(t, ok)
		_, ok = v.Int()
		assert.False(t, ok)
		_, ok = v.Bool()
		assert.False(t, ok)
	})

	t.Run("string forms", func(t *testing.T) {
		assert.Equal(t, "27", IntValue(27).String())
		assert.Equal(t, "true", BoolValue(true).String())
		assert.Equal(t, "Коран", TextValue("Коран").String())
	})
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal(IntValue(-3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"INT","int":-3}`, string(data))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"OPTION","option_id":4}`), &v))
	id, ok := v.OptionID()
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"BOOL"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"FLOAT"}`), &v))
}

func TestSubjectValueDisplay(t *testing.T) {
	sv := SubjectValue{
		AttributeValue: AttributeValue{Value: OptionValue(1)},
		OptionLabel:    "Саляфи",
	}
	assert.Equal(t, "Саляфи", sv.Display())

	sv.Value = TextValue("не знаю")
	assert.Equal(t, "не знаю", sv.Display())
}

func TestValueTypeValid(t *testing.T) {
	assert.True(t, ValueTypeEnum.Valid())
	assert.False(t, ValueType("FLOAT").Valid())
}
