package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/attrs/internal/attribute"
	"github.com/pbaille/attrs/internal/domain"
)

func TestDecodeItems(t *testing.T) {
	items, err := decodeItems([]byte(` [{"key":"age","value":"27"},{"key":"location","value":"Kazan"}] `))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = decodeItems([]byte(`{"attributes":[{"key":"age","value":"27"}]}`))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = decodeItems([]byte(`[{"key":`))
	assert.Error(t, err)
}

func TestParseSubject(t *testing.T) {
	id, err := parseSubject(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseSubject("abc")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Любим...", truncate("Любимая книга", 8))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}

func TestRenderValues(t *testing.T) {
	ev := "мне 27"
	var buf bytes.Buffer
	err := renderValues(&buf, []domain.SubjectValue{{
		AttributeValue: domain.AttributeValue{Value: domain.IntValue(27), Confidence: 0.9, Evidence: &ev},
		AttributeKey:   "age",
	}})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "age")
	assert.Contains(t, out, "27")
	assert.Contains(t, out, "0.90")
}

func TestRenderImport(t *testing.T) {
	var buf bytes.Buffer
	err := renderImport(&buf, []int64{1, 2}, map[int64]attribute.Result{
		1: {BatchID: "b1", Applied: 3},
		2: {BatchID: "b2", Applied: 1, Skipped: []attribute.Skip{{Index: 0, Reason: "bad"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "b1")
	assert.Contains(t, buf.String(), "b2")
}
