package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

// valueColumns splits a Value into its storage columns. Only the column of
// the authoritative variant is non-NULL, so every write clears the others.
func valueColumns(v domain.Value) (kind domain.ValueKind, optionID, text, integer, boolean any) {
	kind = v.Kind()
	switch kind {
	case domain.KindOption:
		id, _ := v.OptionID()
		return kind, id, nil, nil, nil
	case domain.KindInt:
		n, _ := v.Int()
		return kind, nil, nil, n, nil
	case domain.KindBool:
		b, _ := v.Bool()
		return kind, nil, nil, nil, b
	default:
		s, _ := v.Text()
		return domain.KindText, nil, s, nil, nil
	}
}

type valueRow struct {
	kind     domain.ValueKind
	optionID sql.NullInt64
	text     sql.NullString
	integer  sql.NullInt64
	boolean  sql.NullBool
}

func (r valueRow) value() (domain.Value, error) {
	switch r.kind {
	case domain.KindOption:
		if !r.optionID.Valid {
			return domain.Value{}, errors.New("option value without option_id")
		}
		return domain.OptionValue(r.optionID.Int64), nil
	case domain.KindInt:
		if !r.integer.Valid {
			return domain.Value{}, errors.New("int value without value_int")
		}
		return domain.IntValue(r.integer.Int64), nil
	case domain.KindBool:
		if !r.boolean.Valid {
			return domain.Value{}, errors.New("bool value without value_bool")
		}
		return domain.BoolValue(r.boolean.Bool), nil
	case domain.KindText:
		return domain.TextValue(r.text.String), nil
	}
	return domain.Value{}, errors.Newf("unknown value kind %q", r.kind)
}

// ValueFor returns the stored value of one (subject, attribute) pair.
func (q *Queries) ValueFor(ctx context.Context, subjectID, attributeID int64) (*domain.AttributeValue, error) {
	var (
		v        domain.AttributeValue
		r        valueRow
		evidence sql.NullString
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, subject_id, attribute_id, value_kind, option_id, value_text, value_int, value_bool,
		        confidence, evidence, created_at, updated_at
		 FROM attribute_values WHERE subject_id = ? AND attribute_id = ?`,
		subjectID, attributeID,
	).Scan(
		&v.ID, &v.SubjectID, &v.AttributeID, &r.kind, &r.optionID, &r.text, &r.integer, &r.boolean,
		&v.Confidence, &evidence, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, "get value")
	}
	if v.Value, err = r.value(); err != nil {
		return nil, errors.Wrap(err, "decode value")
	}
	if evidence.Valid {
		v.Evidence = &evidence.String
	}
	return &v, nil
}

// InsertValue stores the first value of a (subject, attribute) pair.
// A second value for the same pair yields ErrConflict.
func (q *Queries) InsertValue(ctx context.Context, v *domain.AttributeValue) error {
	now := time.Now().UTC()
	kind, optionID, text, integer, boolean := valueColumns(v.Value)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO attribute_values
		 (subject_id, attribute_id, value_kind, option_id, value_text, value_int, value_bool, confidence, evidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SubjectID, v.AttributeID, kind, optionID, text, integer, boolean, v.Confidence, v.Evidence, now, now,
	)
	if err != nil {
		return translate(err, "insert value")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "insert value id")
	}
	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

// UpdateValue replaces every value and provenance column of the pair's row.
func (q *Queries) UpdateValue(ctx context.Context, v *domain.AttributeValue) error {
	now := time.Now().UTC()
	kind, optionID, text, integer, boolean := valueColumns(v.Value)
	res, err := q.db.ExecContext(ctx,
		`UPDATE attribute_values
		 SET value_kind = ?, option_id = ?, value_text = ?, value_int = ?, value_bool = ?,
		     confidence = ?, evidence = ?, updated_at = ?
		 WHERE subject_id = ? AND attribute_id = ?`,
		kind, optionID, text, integer, boolean, v.Confidence, v.Evidence, now,
		v.SubjectID, v.AttributeID,
	)
	if err != nil {
		return translate(err, "update value")
	}
	if err := expectRow(res, "update value"); err != nil {
		return err
	}
	v.UpdatedAt = now
	return nil
}

// SubjectValues returns every stored value of a subject joined with its
// attribute and, for option values, the option.
func (q *Queries) SubjectValues(ctx context.Context, subjectID int64) ([]domain.SubjectValue, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT v.id, v.subject_id, v.attribute_id, v.value_kind, v.option_id, v.value_text, v.value_int, v.value_bool,
		        v.confidence, v.evidence, v.created_at, v.updated_at,
		        a.key, a.title, o.code, o.label
		 FROM attribute_values v
		 JOIN attributes a ON a.id = v.attribute_id
		 LEFT JOIN attribute_options o ON o.id = v.option_id
		 WHERE v.subject_id = ?
		 ORDER BY a.is_primary DESC, a.key`,
		subjectID,
	)
	if err != nil {
		return nil, translate(err, "list subject values")
	}
	defer rows.Close()

	var out []domain.SubjectValue
	for rows.Next() {
		var (
			sv          domain.SubjectValue
			r           valueRow
			evidence    sql.NullString
			code, label sql.NullString
		)
		if err := rows.Scan(
			&sv.ID, &sv.SubjectID, &sv.AttributeID, &r.kind, &r.optionID, &r.text, &r.integer, &r.boolean,
			&sv.Confidence, &evidence, &sv.CreatedAt, &sv.UpdatedAt,
			&sv.AttributeKey, &sv.AttributeTitle, &code, &label,
		); err != nil {
			return nil, errors.Wrap(err, "scan subject value")
		}
		if sv.Value, err = r.value(); err != nil {
			return nil, errors.Wrap(err, "decode value")
		}
		if evidence.Valid {
			sv.Evidence = &evidence.String
		}
		sv.OptionCode = code.String
		sv.OptionLabel = label.String
		out = append(out, sv)
	}
	return out, errors.Wrap(rows.Err(), "iterate subject values")
}

// ListSubjects returns the IDs of every subject with at least one value.
func (q *Queries) ListSubjects(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT DISTINCT subject_id FROM attribute_values ORDER BY subject_id")
	if err != nil {
		return nil, translate(err, "list subjects")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan subject")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate subjects")
}
