package attribute

import (
	"context"

	"github.com/pbaille/attrs/internal/domain"
)

// Repository is the storage the engine needs. Lookups return an error marked
// errors.ErrNotFound when the row is absent; inserts return one marked
// errors.ErrConflict when a unique constraint rejects the row.
type Repository interface {
	AttributeByKey(ctx context.Context, key string) (*domain.Attribute, error)
	InsertAttribute(ctx context.Context, a *domain.Attribute) error
	UpdateAttribute(ctx context.Context, a *domain.Attribute) error
	CountValues(ctx context.Context, attributeID int64) (int, error)

	OptionByCode(ctx context.Context, attributeID int64, code string) (*domain.Option, error)
	ListOptions(ctx context.Context, attributeID int64) ([]domain.Option, error)
	InsertOption(ctx context.Context, o *domain.Option) error

	ValueFor(ctx context.Context, subjectID, attributeID int64) (*domain.AttributeValue, error)
	InsertValue(ctx context.Context, v *domain.AttributeValue) error
	UpdateValue(ctx context.Context, v *domain.AttributeValue) error
}
