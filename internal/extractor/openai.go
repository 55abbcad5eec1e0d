// Package extractor turns free profile text into raw observation items by
// asking an OpenAI-compatible chat model.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/pbaille/attrs/internal/config"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/logger"
)

// DefaultModel is used when the config names none.
const DefaultModel = "gpt-4.1-nano"

const systemPrompt = `Ты - извлекатель атрибутов для мусульманского брачного бота.
Твоя задача: из свободного текста анкеты выделить устойчивые атрибуты и нормализовать их.
Верни ТОЛЬКО JSON без пояснений.

Правила:
1) Если пользователь против многоженства ИЛИ хочет быть единственной женой ИЛИ просит многоженцев не беспокоить - это один атрибут key='polygamy', label='Многоженство'.
2) value для polygamy: 'against' (против), 'allow' (разрешает), 'conditional' (условно), 'unknown'.
3) confidence 0..1.
4) evidence - короткая цитата из исходного текста.
5) Если встречается новый устойчивый атрибут, добавляй его, но key делай на латинице snake_case.
6) scope: 'SELF' если это о самом пользователе, 'PREFERENCE' если это требование к партнеру.

Формат ответа:
{
  "attributes": [
    {"key": "polygamy", "label": "Многоженство", "value": "against", "confidence": 0.9, "evidence": "...", "scope": "PREFERENCE"}
  ]
}`

// Extractor calls the chat completions endpoint.
type Extractor struct {
	client  openai.Client
	model   string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New creates an Extractor from config. Extra request options are appended
// after the ones derived from cfg.
func New(cfg config.ExtractorConfig, log *zap.SugaredLogger, opts ...option.RequestOption) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.WithHint(
			errors.New("extractor API key not set"),
			"set OPENAI_API_KEY or extractor.api_key in attrs.toml",
		)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Extractor{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		timeout: cfg.Timeout(),
		log:     logger.OrNop(log),
	}, nil
}

// Extract sends text to the model and returns the items of its "attributes"
// array, undecoded. Items are validated later, one by one.
func (e *Extractor) Extract(ctx context.Context, text string) ([]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	items, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	e.log.Debugw("Extracted attributes",
		"model", e.model,
		"items", len(items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return items, nil
}

// ParseResponse pulls the "attributes" array out of a model reply. The reply
// may carry prose or code fences around the JSON object, and the object may
// be slightly malformed.
func ParseResponse(reply string) ([]json.RawMessage, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return nil, errors.Newf("no JSON object in reply %q", truncate(reply, 200))
	}
	body := []byte(reply[start : end+1])

	var payload struct {
		Attributes json.RawMessage `json:"attributes"`
	}
	if err := unmarshalJSON(body, &payload); err != nil {
		return nil, errors.Wrapf(err, "decode reply %q", truncate(reply, 200))
	}

	raw := bytes.TrimSpace(payload.Attributes)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "attributes is not an array")
	}
	return items, nil
}

// unmarshalJSON retries through jsonrepair when the input is not valid JSON.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return errors.Wrap(repairErr, "repair json")
	}
	return json.Unmarshal([]byte(fixed), v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
