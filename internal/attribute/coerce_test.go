package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pbaille/attrs/internal/domain"
)

func TestExtractInt(t *testing.T) {
	n, ok := ExtractInt("27 years")
	assert.True(t, ok)
	assert.Equal(t, int64(27), n)

	n, ok = ExtractInt("temperature -5 today, 10 tomorrow")
	assert.True(t, ok)
	assert.Equal(t, int64(-5), n)

	_, ok = ExtractInt("twenty")
	assert.False(t, ok)

	_, ok = ExtractInt("99999999999999999999")
	assert.False(t, ok)
}

func TestExtractBool(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", " 1 ", "да", "Да"} {
		b, ok := ExtractBool(s)
		assert.True(t, ok, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"no", "False", "0", "нет", "НЕТ"} {
		b, ok := ExtractBool(s)
		assert.True(t, ok, s)
		assert.False(t, b, s)
	}
	for _, s := range []string{"maybe", "", "yes please"} {
		_, ok := ExtractBool(s)
		assert.False(t, ok, s)
	}
}

func TestCoerceScalar(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		v := CoerceScalar(domain.ValueTypeInt, "27 years")
		n, ok := v.Int()
		assert.True(t, ok)
		assert.Equal(t, int64(27), n)
	})

	t.Run("int fallback keeps text", func(t *testing.T) {
		v := CoerceScalar(domain.ValueTypeInt, "twenty")
		s, ok := v.Text()
		assert.True(t, ok)
		assert.Equal(t, "twenty", s)
	})

	t.Run("bool", func(t *testing.T) {
		v := CoerceScalar(domain.ValueTypeBool, "нет")
		b, ok := v.Bool()
		assert.True(t, ok)
		assert.False(t, b)
	})

	t.Run("bool fallback keeps text", func(t *testing.T) {
		v := CoerceScalar(domain.ValueTypeBool, "maybe")
		assert.Equal(t, domain.KindText, v.Kind())
		assert.Equal(t, "maybe", v.String())
	})

	t.Run("text is stored verbatim", func(t *testing.T) {
		v := CoerceScalar(domain.ValueTypeText, "42")
		assert.Equal(t, domain.KindText, v.Kind())
		assert.Equal(t, "42", v.String())
	})
}
