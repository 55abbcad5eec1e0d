package attribute

import (
	"context"
	"encoding/json"
	"iter"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pbaille/attrs/internal/catalog"
	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/logger"
	"github.com/pbaille/attrs/internal/store"
)

var _ Repository = (*store.Queries)(nil)

// Extractor turns free text into raw observation items.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]json.RawMessage, error)
}

// Service exposes the engine's operations, each in its own transaction.
type Service struct {
	store   *store.Store
	catalog *catalog.Catalog
	engine  *Engine
	log     *zap.SugaredLogger

	// MinTextLength is the shortest free text worth sending to the extractor.
	MinTextLength int
}

// NewService creates a Service seeding from cat.
func NewService(s *store.Store, cat *catalog.Catalog, log *zap.SugaredLogger) *Service {
	log = logger.OrNop(log)
	return &Service{
		store:         s,
		catalog:       cat,
		engine:        NewEngine(log),
		log:           log,
		MinTextLength: 10,
	}
}

// SeedCanonicalAttributes upserts the catalog. Safe to run on every start.
func (s *Service) SeedCanonicalAttributes(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = s.engine.Seed(ctx, q, s.catalog)
		return err
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.log.Infow("Seeded canonical attributes",
		"attributes", len(s.catalog.Attributes),
		"created", res.Created,
		"updated", res.Updated,
		"options_added", res.OptionsAdded,
	)
	return res, nil
}

// ResolveAttributeByKey returns the attribute with this exact key and its
// options. An unknown key yields an error marked errors.ErrNotFound.
func (s *Service) ResolveAttributeByKey(ctx context.Context, key string) (*domain.Attribute, error) {
	q := s.store.Queries()
	attr, err := q.AttributeByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if attr.Options, err = q.ListOptions(ctx, attr.ID); err != nil {
		return nil, err
	}
	return attr, nil
}

// ListAttributes returns all definitions, or only those in status.
func (s *Service) ListAttributes(ctx context.Context, status domain.Status) ([]domain.Attribute, error) {
	return s.store.Queries().ListAttributes(ctx, status)
}

// ApplyObservations applies a batch of raw items in one transaction.
func (s *Service) ApplyObservations(ctx context.Context, subjectID int64, items iter.Seq[json.RawMessage]) (Result, error) {
	var res Result
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = s.engine.ApplyObservations(ctx, q, subjectID, items)
		return err
	})
	return res, err
}

// ApplyAnswers records structured questionnaire answers in one transaction.
func (s *Service) ApplyAnswers(ctx context.Context, subjectID int64, answers map[string]string) (Result, error) {
	var res Result
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = s.engine.ApplyAnswers(ctx, q, subjectID, answers)
		return err
	})
	return res, err
}

// UpsertKnownAttribute writes one value for an existing attribute.
func (s *Service) UpsertKnownAttribute(ctx context.Context, subjectID int64, key, raw, optionCode string, confidence float64, evidence *string) error {
	return s.store.InTx(ctx, func(q *store.Queries) error {
		_, err := s.engine.UpsertKnown(ctx, q, subjectID, key, raw, optionCode, confidence, evidence)
		return err
	})
}

// PromoteAttribute marks a dynamically discovered attribute as reviewed.
func (s *Service) PromoteAttribute(ctx context.Context, key string) (*domain.Attribute, error) {
	var attr *domain.Attribute
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		if attr, err = q.AttributeByKey(ctx, key); err != nil {
			return err
		}
		if attr.Status == domain.StatusActive {
			return nil
		}
		attr.Status = domain.StatusActive
		return q.UpdateAttribute(ctx, attr)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("Promoted attribute", "attribute_key", key, "attribute_id", attr.ID)
	return attr, nil
}

// SubjectValues returns everything stored about a subject.
func (s *Service) SubjectValues(ctx context.Context, subjectID int64) ([]domain.SubjectValue, error) {
	return s.store.Queries().SubjectValues(ctx, subjectID)
}

// Export returns the stored values of every subject.
func (s *Service) Export(ctx context.Context) (map[int64][]domain.SubjectValue, error) {
	q := s.store.Queries()
	subjects, err := q.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]domain.SubjectValue, len(subjects))
	for _, id := range subjects {
		values, err := q.SubjectValues(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "export subject %d", id)
		}
		out[id] = values
	}
	return out, nil
}

// ExtractResult reports an extraction run. Warning is set when the
// extractor failed; the run itself still succeeds.
type ExtractResult struct {
	Result
	Extracted int    `json:"extracted"`
	Warning   string `json:"warning,omitempty"`
}

// ExtractAndApply sends text to ex and applies what comes back. Texts shorter
// than MinTextLength are ignored. Extractor failures are logged and reported
// in the result rather than returned, so they never fail the caller's save.
func (s *Service) ExtractAndApply(ctx context.Context, subjectID int64, text string, ex Extractor) (ExtractResult, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < s.MinTextLength {
		return ExtractResult{}, nil
	}

	// The extractor is awaited outside the transaction.
	items, err := ex.Extract(ctx, text)
	if err != nil {
		s.log.Errorw("Attribute extraction failed", "subject_id", subjectID, "error", err)
		return ExtractResult{Warning: "extraction failed: " + err.Error()}, nil
	}

	res, err := s.ApplyObservations(ctx, subjectID, slicesValues(items))
	if err != nil {
		return ExtractResult{}, err
	}
	return ExtractResult{Result: res, Extracted: len(items)}, nil
}

func slicesValues(items []json.RawMessage) iter.Seq[json.RawMessage] {
	return func(yield func(json.RawMessage) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}
