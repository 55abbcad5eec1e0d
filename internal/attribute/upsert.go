package attribute

import (
	"context"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/observation"
)

// Upsert stores raw as the single value of (subjectID, attr). An existing
// row is fully replaced: the typed value, confidence and evidence all take
// the new observation's values. Losing an insert race turns into an update.
func (e *Engine) Upsert(ctx context.Context, repo Repository, subjectID int64, attr *domain.Attribute, raw, optionCode string, confidence float64, evidence *string) error {
	value, err := Coerce(ctx, repo, attr, raw, optionCode)
	if err != nil {
		return errors.Wrapf(err, "coerce %s", attr.Key)
	}

	row := &domain.AttributeValue{
		SubjectID:   subjectID,
		AttributeID: attr.ID,
		Value:       value,
		Confidence:  observation.ClampConfidence(confidence),
		Evidence:    evidence,
	}

	_, err = repo.ValueFor(ctx, subjectID, attr.ID)
	switch {
	case err == nil:
		return errors.Wrapf(repo.UpdateValue(ctx, row), "update %s", attr.Key)
	case !errors.IsNotFound(err):
		return errors.Wrapf(err, "load %s", attr.Key)
	}

	err = repo.InsertValue(ctx, row)
	if errors.IsConflict(err) {
		e.log.Debugw("Value inserted concurrently, updating instead",
			"subject_id", subjectID,
			"attribute_key", attr.Key,
		)
		return errors.Wrapf(repo.UpdateValue(ctx, row), "update %s", attr.Key)
	}
	return errors.Wrapf(err, "insert %s", attr.Key)
}

// UpsertKnown writes a value for an attribute the caller names by its exact
// key, as structured questionnaire flows do. Unknown keys are not created.
func (e *Engine) UpsertKnown(ctx context.Context, repo Repository, subjectID int64, key, raw, optionCode string, confidence float64, evidence *string) (*domain.Attribute, error) {
	attr, err := repo.AttributeByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := e.Upsert(ctx, repo, subjectID, attr, raw, optionCode, confidence, evidence); err != nil {
		return nil, err
	}
	return attr, nil
}
