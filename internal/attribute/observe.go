package attribute

import (
	"context"
	"encoding/json"
	"iter"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/observation"
)

// Skip records why one item of a batch was not applied.
type Skip struct {
	Index  int    `json:"index"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// Result summarizes a batch.
type Result struct {
	BatchID string `json:"batch_id"`
	Applied int    `json:"applied"`
	Skipped []Skip `json:"skipped,omitempty"`
}

func newResult() Result {
	return Result{BatchID: uuid.NewString()}
}

// ApplyObservations resolves and upserts every raw item for subjectID. Items
// that cannot be decoded are logged and skipped without affecting the rest.
// Storage failures abort the batch and are returned.
func (e *Engine) ApplyObservations(ctx context.Context, repo Repository, subjectID int64, items iter.Seq[json.RawMessage]) (Result, error) {
	res := newResult()
	log := e.log.With("batch_id", res.BatchID, "subject_id", subjectID)

	index := -1
	for raw := range items {
		index++
		if err := ctx.Err(); err != nil {
			return res, err
		}

		obs, err := observation.Parse(raw)
		if err != nil {
			log.Warnw("Skipping malformed observation", "item_index", index, "error", err)
			res.Skipped = append(res.Skipped, Skip{Index: index, Reason: err.Error()})
			continue
		}

		attr, err := e.Resolve(ctx, repo, obs.Key, obs.Label, obs.Scope)
		if err != nil {
			return res, errors.Wrapf(err, "resolve item %d (%s)", index, obs.Key)
		}
		if err := e.Upsert(ctx, repo, subjectID, attr, obs.Value, "", obs.Confidence, obs.Evidence); err != nil {
			return res, errors.Wrapf(err, "apply item %d", index)
		}
		res.Applied++
	}

	log.Debugw("Applied observations", "applied", res.Applied, "skipped", len(res.Skipped))
	return res, nil
}

// ApplyAnswers records structured questionnaire answers keyed by canonical
// attribute key, with full confidence. For ENUM attributes the answer is the
// option code. Unknown keys and empty answers are skipped.
func (e *Engine) ApplyAnswers(ctx context.Context, repo Repository, subjectID int64, answers map[string]string) (Result, error) {
	res := newResult()
	log := e.log.With("batch_id", res.BatchID, "subject_id", subjectID)

	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for i, key := range keys {
		value := strings.TrimSpace(answers[key])
		if value == "" {
			res.Skipped = append(res.Skipped, Skip{Index: i, Key: key, Reason: "empty answer"})
			continue
		}

		attr, err := repo.AttributeByKey(ctx, key)
		if errors.IsNotFound(err) {
			log.Warnw("Skipping answer for unknown attribute", "attribute_key", key)
			res.Skipped = append(res.Skipped, Skip{Index: i, Key: key, Reason: "unknown attribute"})
			continue
		}
		if err != nil {
			return res, errors.Wrapf(err, "load %s", key)
		}

		optionCode := ""
		if attr.ValueType == domain.ValueTypeEnum {
			optionCode = value
		}
		if err := e.Upsert(ctx, repo, subjectID, attr, value, optionCode, 1.0, nil); err != nil {
			return res, err
		}
		res.Applied++
	}
	return res, nil
}
