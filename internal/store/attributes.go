package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

const attributeColumns = "id, key, title, scope, value_type, is_canonical, is_primary, status, created_at, updated_at"

func scanAttribute(row interface{ Scan(...any) error }) (*domain.Attribute, error) {
	var a domain.Attribute
	err := row.Scan(
		&a.ID, &a.Key, &a.Title, &a.Scope, &a.ValueType,
		&a.IsCanonical, &a.IsPrimary, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AttributeByKey returns the definition with exactly this key.
func (q *Queries) AttributeByKey(ctx context.Context, key string) (*domain.Attribute, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+attributeColumns+" FROM attributes WHERE key = ?", key)
	a, err := scanAttribute(row)
	if err != nil {
		return nil, translate(err, "get attribute "+key)
	}
	return a, nil
}

// ListAttributes returns definitions ordered by key, optionally filtered by status.
func (q *Queries) ListAttributes(ctx context.Context, status domain.Status) ([]domain.Attribute, error) {
	query := "SELECT " + attributeColumns + " FROM attributes"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY key"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list attributes")
	}
	defer rows.Close()

	var attrs []domain.Attribute
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attribute")
		}
		attrs = append(attrs, *a)
	}
	return attrs, errors.Wrap(rows.Err(), "iterate attributes")
}

// InsertAttribute creates a definition and fills in its ID and timestamps.
// A duplicate key yields ErrConflict.
func (q *Queries) InsertAttribute(ctx context.Context, a *domain.Attribute) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO attributes (key, title, scope, value_type, is_canonical, is_primary, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Key, a.Title, a.Scope, a.ValueType, a.IsCanonical, a.IsPrimary, a.Status, now, now,
	)
	if err != nil {
		return translate(err, "insert attribute "+a.Key)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "insert attribute id")
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// UpdateAttribute overwrites the mutable fields of a definition by ID.
func (q *Queries) UpdateAttribute(ctx context.Context, a *domain.Attribute) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`UPDATE attributes
		 SET title = ?, scope = ?, value_type = ?, is_canonical = ?, is_primary = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		a.Title, a.Scope, a.ValueType, a.IsCanonical, a.IsPrimary, a.Status, now, a.ID,
	)
	if err != nil {
		return translate(err, "update attribute "+a.Key)
	}
	if err := expectRow(res, "update attribute "+a.Key); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

// CountValues returns how many stored values reference the attribute.
func (q *Queries) CountValues(ctx context.Context, attributeID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attribute_values WHERE attribute_id = ?", attributeID,
	).Scan(&n)
	if err != nil {
		return 0, translate(err, "count values")
	}
	return n, nil
}

// OptionByCode returns the option of an attribute with exactly this code.
func (q *Queries) OptionByCode(ctx context.Context, attributeID int64, code string) (*domain.Option, error) {
	var o domain.Option
	err := q.db.QueryRowContext(ctx,
		"SELECT id, attribute_id, code, label FROM attribute_options WHERE attribute_id = ? AND code = ?",
		attributeID, code,
	).Scan(&o.ID, &o.AttributeID, &o.Code, &o.Label)
	if err != nil {
		return nil, translate(err, "get option "+code)
	}
	return &o, nil
}

// OptionByID returns a single option.
func (q *Queries) OptionByID(ctx context.Context, id int64) (*domain.Option, error) {
	var o domain.Option
	err := q.db.QueryRowContext(ctx,
		"SELECT id, attribute_id, code, label FROM attribute_options WHERE id = ?", id,
	).Scan(&o.ID, &o.AttributeID, &o.Code, &o.Label)
	if err != nil {
		return nil, translate(err, "get option")
	}
	return &o, nil
}

// ListOptions returns the options of an attribute in insertion order.
func (q *Queries) ListOptions(ctx context.Context, attributeID int64) ([]domain.Option, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, attribute_id, code, label FROM attribute_options WHERE attribute_id = ? ORDER BY id",
		attributeID,
	)
	if err != nil {
		return nil, translate(err, "list options")
	}
	defer rows.Close()

	var opts []domain.Option
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.AttributeID, &o.Code, &o.Label); err != nil {
			return nil, errors.Wrap(err, "scan option")
		}
		opts = append(opts, o)
	}
	return opts, errors.Wrap(rows.Err(), "iterate options")
}

// InsertOption adds an option. A duplicate (attribute, code) yields ErrConflict.
func (q *Queries) InsertOption(ctx context.Context, o *domain.Option) error {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO attribute_options (attribute_id, code, label) VALUES (?, ?, ?)",
		o.AttributeID, o.Code, o.Label,
	)
	if err != nil {
		return translate(err, "insert option "+o.Code)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "insert option id")
	}
	o.ID = id
	return nil
}

func expectRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return errors.Wrap(errors.ErrNotFound, op)
	}
	return nil
}
