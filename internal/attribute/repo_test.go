package attribute

import (
	"context"
	"sync"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

// memRepo is an in-memory Repository. The race hooks let a test play a
// concurrent writer that wins the next insert.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	attrs   map[string]*domain.Attribute
	options map[int64][]domain.Option
	values  map[[2]int64]*domain.AttributeValue

	raceAttribute func(a *domain.Attribute)
	raceValue     func(v *domain.AttributeValue)
	failValues    error

	inserts, updates int
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		attrs:   map[string]*domain.Attribute{},
		options: map[int64][]domain.Option{},
		values:  map[[2]int64]*domain.AttributeValue{},
	}
}

func (r *memRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) AttributeByKey(_ context.Context, key string) (*domain.Attribute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attrs[key]
	if !ok {
		return nil, errors.NewNotFound("attribute %s", key)
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) InsertAttribute(_ context.Context, a *domain.Attribute) error {
	if hook := r.raceAttribute; hook != nil {
		r.raceAttribute = nil
		hook(a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attrs[a.Key]; ok {
		return errors.Mark(errors.Newf("duplicate key %s", a.Key), errors.ErrConflict)
	}
	a.ID = r.id()
	cp := *a
	r.attrs[a.Key] = &cp
	return nil
}

func (r *memRepo) UpdateAttribute(_ context.Context, a *domain.Attribute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attrs[a.Key]; !ok {
		return errors.NewNotFound("attribute %s", a.Key)
	}
	cp := *a
	r.attrs[a.Key] = &cp
	return nil
}

func (r *memRepo) CountValues(_ context.Context, attributeID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.values {
		if k[1] == attributeID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) OptionByCode(_ context.Context, attributeID int64, code string) (*domain.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.options[attributeID] {
		if o.Code == code {
			return &o, nil
		}
	}
	return nil, errors.NewNotFound("option %s", code)
}

func (r *memRepo) ListOptions(_ context.Context, attributeID int64) ([]domain.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Option(nil), r.options[attributeID]...), nil
}

func (r *memRepo) InsertOption(_ context.Context, o *domain.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.options[o.AttributeID] {
		if existing.Code == o.Code {
			return errors.Mark(errors.Newf("duplicate option %s", o.Code), errors.ErrConflict)
		}
	}
	o.ID = r.id()
	r.options[o.AttributeID] = append(r.options[o.AttributeID], *o)
	return nil
}

func (r *memRepo) ValueFor(_ context.Context, subjectID, attributeID int64) (*domain.AttributeValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failValues != nil {
		return nil, r.failValues
	}
	v, ok := r.values[[2]int64{subjectID, attributeID}]
	if !ok {
		return nil, errors.NewNotFound("value %d/%d", subjectID, attributeID)
	}
	cp := *v
	return &cp, nil
}

func (r *memRepo) InsertValue(_ context.Context, v *domain.AttributeValue) error {
	if hook := r.raceValue; hook != nil {
		r.raceValue = nil
		hook(v)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]int64{v.SubjectID, v.AttributeID}
	if _, ok := r.values[k]; ok {
		return errors.Mark(errors.New("duplicate value"), errors.ErrConflict)
	}
	v.ID = r.id()
	cp := *v
	r.values[k] = &cp
	r.inserts++
	return nil
}

func (r *memRepo) UpdateValue(_ context.Context, v *domain.AttributeValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]int64{v.SubjectID, v.AttributeID}
	old, ok := r.values[k]
	if !ok {
		return errors.NewNotFound("value %d/%d", v.SubjectID, v.AttributeID)
	}
	cp := *v
	cp.ID = old.ID
	r.values[k] = &cp
	r.updates++
	return nil
}

func (r *memRepo) value(subjectID int64, key string) *domain.AttributeValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attrs[key]
	if !ok {
		return nil
	}
	return r.values[[2]int64{subjectID, a.ID}]
}
