package observation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

func TestParse(t *testing.T) {
	t.Run("full item", func(t *testing.T) {
		obs, err := Parse(json.RawMessage(`{
			"key": " polygamy ",
			"label": "Многоженство",
			"value": "against",
			"confidence": 0.9,
			"evidence": "прошу многоженцев не беспокоить",
			"scope": "PREFERENCE"
		}`))
		require.NoError(t, err)
		assert.Equal(t, "polygamy", obs.Key)
		assert.Equal(t, "Многоженство", obs.Label)
		assert.Equal(t, "against", obs.Value)
		assert.Equal(t, 0.9, obs.Confidence)
		require.NotNil(t, obs.Evidence)
		assert.Equal(t, "прошу многоженцев не беспокоить", *obs.Evidence)
		assert.Equal(t, "PREFERENCE", obs.Scope)
	})

	t.Run("defaults for optional fields", func(t *testing.T) {
		obs, err := Parse(json.RawMessage(`{"key":"Любимая книга","value":"Коран"}`))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfidence, obs.Confidence)
		assert.Equal(t, domain.ScopeSelf, obs.Scope)
		assert.Nil(t, obs.Evidence)
		assert.Empty(t, obs.Label)
	})

	t.Run("numeric and boolean values keep their spelling", func(t *testing.T) {
		obs, err := Parse(json.RawMessage(`{"key":"age","value":27}`))
		require.NoError(t, err)
		assert.Equal(t, "27", obs.Value)

		obs, err = Parse(json.RawMessage(`{"key":"smoker","value":false}`))
		require.NoError(t, err)
		assert.Equal(t, "false", obs.Value)
	})

	t.Run("wrongly typed optional fields fall back", func(t *testing.T) {
		obs, err := Parse(json.RawMessage(`{"key":"k","value":"v","confidence":"high","scope":7,"evidence":["x"],"label":{}}`))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfidence, obs.Confidence)
		assert.Equal(t, domain.ScopeSelf, obs.Scope)
		assert.Nil(t, obs.Evidence)
		assert.Empty(t, obs.Label)
	})

	t.Run("confidence as string and out of range", func(t *testing.T) {
		obs, err := Parse(json.RawMessage(`{"key":"k","value":"v","confidence":"0.4"}`))
		require.NoError(t, err)
		assert.Equal(t, 0.4, obs.Confidence)

		obs, err = Parse(json.RawMessage(`{"key":"k","value":"v","confidence":7}`))
		require.NoError(t, err)
		assert.Equal(t, 1.0, obs.Confidence)

		obs, err = Parse(json.RawMessage(`{"key":"k","value":"v","confidence":-2}`))
		require.NoError(t, err)
		assert.Equal(t, 0.0, obs.Confidence)
	})

	malformed := map[string]string{
		"not json":      `{"key":`,
		"array":         `["key","value"]`,
		"null":          `null`,
		"missing key":   `{"value":"v"}`,
		"numeric key":   `{"key":5,"value":"v"}`,
		"blank key":     `{"key":"  ","value":"v"}`,
		"missing value": `{"key":"k"}`,
		"null value":    `{"key":"k","value":null}`,
		"empty value":   `{"key":"k","value":"   "}`,
		"object value":  `{"key":"k","value":{"a":1}}`,
		"array value":   `{"key":"k","value":[1]}`,
	}
	for name, raw := range malformed {
		t.Run("malformed "+name, func(t *testing.T) {
			_, err := Parse(json.RawMessage(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedObservation), "got %v", err)
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.5, ClampConfidence(0.5))
	assert.Equal(t, 0.0, ClampConfidence(-0.1))
	assert.Equal(t, 1.0, ClampConfidence(1.1))
	assert.Equal(t, DefaultConfidence, ClampConfidence(math.NaN()))
}
