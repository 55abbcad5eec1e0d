package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pbaille/attrs/internal/attribute"
	"github.com/pbaille/attrs/internal/catalog"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/store"
)

type fakeExtractor struct {
	items []json.RawMessage
	err   error
}

func (f fakeExtractor) Extract(context.Context, string) ([]json.RawMessage, error) {
	return f.items, f.err
}

func newTestServer(t *testing.T, ex attribute.Extractor) http.Handler {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	s, err := store.New(filepath.Join(t.TempDir(), "attrs.db"), store.Options{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := attribute.NewService(s, catalog.Default(), log)
	_, err = svc.SeedCanonicalAttributes(context.Background())
	require.NoError(t, err)
	return New(svc, ex, ":0", log).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAttributesEndpoints(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/attributes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["attributes"], len(catalog.Default().Attributes))

	rec, body = do(t, h, http.MethodGet, "/attributes?status=pending_review", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["attributes"])

	rec, _ = do(t, h, http.MethodGet, "/attributes?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/attributes/children", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ENUM", body["value_type"])
	assert.Len(t, body["options"], 5)

	rec, body = do(t, h, http.MethodGet, "/attributes/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestObservationsAndPromotion(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodPost, "/subjects/12/observations", `{"items":[
		{"key":"Favourite Food","value":"плов"},
		{"key":"age"},
		{"key":"age","value":"33 года"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["applied"])
	assert.Len(t, body["skipped"], 1)
	assert.NotEmpty(t, body["batch_id"])

	rec, body = do(t, h, http.MethodGet, "/attributes?status=PENDING_REVIEW", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["attributes"], 1)

	rec, body = do(t, h, http.MethodPost, "/attributes/favourite_food/promote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", body["status"])

	rec, body = do(t, h, http.MethodGet, "/subjects/12/attributes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["values"], 2)

	rec, _ = do(t, h, http.MethodPost, "/subjects/abc/observations", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/subjects/12/observations", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertAndAnswers(t *testing.T) {
	h := newTestServer(t, nil)

	rec, _ := do(t, h, http.MethodPut, "/subjects/3/attributes/marital_status", `{"value":"x","option_code":"MARRIED","evidence":"анкета"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/subjects/3/attributes/unknown", `{"value":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/subjects/3/attributes/age", `{"value":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/subjects/3/answers", `{"answers":{"age":"30","shoe_size":"41"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["applied"])

	rec, body = do(t, h, http.MethodGet, "/subjects/3/attributes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	values := body["values"].([]any)
	require.Len(t, values, 2)
	// Primary attributes sort first, then by key.
	first := values[0].(map[string]any)
	assert.Equal(t, "age", first["attribute_key"])
	second := values[1].(map[string]any)
	assert.Equal(t, "MARRIED", second["option_code"])
}

func TestExtractEndpoint(t *testing.T) {
	t.Run("without extractor", func(t *testing.T) {
		h := newTestServer(t, nil)
		rec, body := do(t, h, http.MethodPost, "/subjects/1/extract", `{"text":"Мне 27 лет, живу в Казани"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, body["warning"])
	})

	t.Run("extractor failure is a warning", func(t *testing.T) {
		h := newTestServer(t, fakeExtractor{err: errors.New("timeout")})
		rec, body := do(t, h, http.MethodPost, "/subjects/1/extract", `{"text":"Мне 27 лет, живу в Казани"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, body["warning"], "timeout")
	})

	t.Run("applies extracted items", func(t *testing.T) {
		h := newTestServer(t, fakeExtractor{items: []json.RawMessage{
			json.RawMessage(`{"key":"age","value":"27"}`),
			json.RawMessage(`{"key":"location","value":"Казань"}`),
		}})
		rec, body := do(t, h, http.MethodPost, "/subjects/1/extract", `{"text":"Мне 27 лет, живу в Казани"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 2, body["applied"])
		assert.EqualValues(t, 2, body["extracted"])
	})
}
