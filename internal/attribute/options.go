package attribute

import (
	"context"
	"strings"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

// ResolveOption matches a value against an attribute's options. A non-empty
// code is tried first as an exact match; a stale or foreign code falls
// through to comparing the trimmed value with every option's code and label,
// ignoring case. No match yields (nil, nil).
func ResolveOption(ctx context.Context, repo Repository, attributeID int64, code, value string) (*domain.Option, error) {
	if code != "" {
		opt, err := repo.OptionByCode(ctx, attributeID, code)
		if err == nil {
			return opt, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	opts, err := repo.ListOptions(ctx, attributeID)
	if err != nil {
		return nil, err
	}
	for i := range opts {
		if strings.EqualFold(opts[i].Code, value) || strings.EqualFold(opts[i].Label, value) {
			return &opts[i], nil
		}
	}
	return nil, nil
}
