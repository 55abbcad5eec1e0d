package attribute

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pbaille/attrs/internal/catalog"
	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/logger"
)

// Engine runs the normalization operations against a Repository handed in
// per call, so the same engine serves plain connections and transactions.
type Engine struct {
	log *zap.SugaredLogger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(log *zap.SugaredLogger) *Engine {
	return &Engine{log: logger.OrNop(log)}
}

// Resolve finds the attribute for rawKey, trying the key verbatim, then its
// normalized form, and finally creating a TEXT attribute pending review.
// When a concurrent writer creates the same key first, its row is returned.
func (e *Engine) Resolve(ctx context.Context, repo Repository, rawKey, title, scope string) (*domain.Attribute, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey != "" {
		attr, err := repo.AttributeByKey(ctx, rawKey)
		if err == nil {
			return attr, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	key := NormalizeKey(rawKey)
	if key != rawKey {
		attr, err := repo.AttributeByKey(ctx, key)
		if err == nil {
			return attr, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	attr := &domain.Attribute{
		Key:         key,
		Title:       firstNonEmpty(strings.TrimSpace(title), rawKey, key),
		Scope:       firstNonEmpty(strings.TrimSpace(scope), domain.ScopeSelf),
		ValueType:   domain.ValueTypeText,
		IsCanonical: false,
		IsPrimary:   false,
		Status:      domain.StatusPendingReview,
	}
	err := repo.InsertAttribute(ctx, attr)
	if errors.IsConflict(err) {
		e.log.Debugw("Attribute created concurrently, using existing row", "attribute_key", key)
		return repo.AttributeByKey(ctx, key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create dynamic attribute")
	}

	e.log.Infow("Discovered dynamic attribute",
		"attribute_key", key,
		"attribute_id", attr.ID,
		"title", attr.Title,
		"scope", attr.Scope,
	)
	return attr, nil
}

// SeedResult counts what a seeding pass changed.
type SeedResult struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	OptionsAdded int `json:"options_added"`
}

// Seed upserts every catalog entry by key. Existing rows, including ones
// discovered dynamically, are promoted to canonical and ACTIVE in place.
// Missing options are added; options are never removed.
func (e *Engine) Seed(ctx context.Context, repo Repository, cat *catalog.Catalog) (SeedResult, error) {
	var res SeedResult
	for _, entry := range cat.Attributes {
		attr, outcome, err := e.seedAttribute(ctx, repo, entry)
		if err != nil {
			return res, errors.Wrapf(err, "seed %s", entry.Key)
		}
		switch outcome {
		case seedCreated:
			res.Created++
		case seedUpdated:
			res.Updated++
		}

		added, err := seedOptions(ctx, repo, attr.ID, entry.Options)
		if err != nil {
			return res, errors.Wrapf(err, "seed options of %s", entry.Key)
		}
		res.OptionsAdded += added
	}
	return res, nil
}

type seedOutcome int

const (
	seedUnchanged seedOutcome = iota
	seedCreated
	seedUpdated
)

func (e *Engine) seedAttribute(ctx context.Context, repo Repository, entry catalog.Entry) (*domain.Attribute, seedOutcome, error) {
	existing, err := repo.AttributeByKey(ctx, entry.Key)
	if errors.IsNotFound(err) {
		attr := &domain.Attribute{
			Key:         entry.Key,
			Title:       entry.Title,
			Scope:       entry.Scope,
			ValueType:   entry.ValueType,
			IsCanonical: true,
			IsPrimary:   entry.IsPrimary,
			Status:      domain.StatusActive,
		}
		err := repo.InsertAttribute(ctx, attr)
		if err == nil {
			return attr, seedCreated, nil
		}
		if !errors.IsConflict(err) {
			return nil, seedUnchanged, err
		}
		if existing, err = repo.AttributeByKey(ctx, entry.Key); err != nil {
			return nil, seedUnchanged, err
		}
	} else if err != nil {
		return nil, seedUnchanged, err
	}

	want := *existing
	want.Title = entry.Title
	want.Scope = entry.Scope
	want.IsCanonical = true
	want.IsPrimary = entry.IsPrimary
	want.Status = domain.StatusActive

	if existing.ValueType != entry.ValueType {
		n, err := repo.CountValues(ctx, existing.ID)
		if err != nil {
			return nil, seedUnchanged, err
		}
		if n == 0 {
			want.ValueType = entry.ValueType
		} else {
			e.log.Warnw("Keeping value type of attribute with stored values",
				"attribute_key", entry.Key,
				"stored_type", existing.ValueType,
				"catalog_type", entry.ValueType,
				"values", n,
			)
		}
	}

	if sameDefinition(*existing, want) {
		return existing, seedUnchanged, nil
	}
	if err := repo.UpdateAttribute(ctx, &want); err != nil {
		return nil, seedUnchanged, err
	}
	e.log.Infow("Updated canonical attribute",
		"attribute_key", entry.Key,
		"attribute_id", want.ID,
		"was_canonical", existing.IsCanonical,
		"previous_status", existing.Status,
	)
	return &want, seedUpdated, nil
}

func seedOptions(ctx context.Context, repo Repository, attributeID int64, entries []catalog.OptionEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	stored, err := repo.ListOptions(ctx, attributeID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(stored))
	for _, o := range stored {
		have[o.Code] = true
	}

	added := 0
	for _, entry := range entries {
		if have[entry.Code] {
			continue
		}
		err := repo.InsertOption(ctx, &domain.Option{AttributeID: attributeID, Code: entry.Code, Label: entry.Label})
		if errors.IsConflict(err) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func sameDefinition(a, b domain.Attribute) bool {
	return a.Title == b.Title &&
		a.Scope == b.Scope &&
		a.ValueType == b.ValueType &&
		a.IsCanonical == b.IsCanonical &&
		a.IsPrimary == b.IsPrimary &&
		a.Status == b.Status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
