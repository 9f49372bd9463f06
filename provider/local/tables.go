package local

import (
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	mettle "github.com/mettlehq/go-mettle"
)

// tableBackend implements the backend's table surface for the two
// tables the shell reads: user_profiles and assessments (with embedded
// results). Rows come back as JSON documents, matching the hosted wire
// shape.
type tableBackend struct {
	backend *Backend
}

var _ mettle.TableAPI = (*tableBackend)(nil)

var errUnknownTable = goerrors.New("unknown table", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

func (t *tableBackend) Select(ctx context.Context, table string, q mettle.Query) ([]byte, error) {
	switch table {
	case "user_profiles":
		rows, err := t.selectProfiles(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	case "assessments":
		rows, err := t.selectAssessments(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	default:
		return nil, errUnknownTable
	}
}

func (t *tableBackend) SelectSingle(ctx context.Context, table string, q mettle.Query) ([]byte, error) {
	q.Limit = 1

	switch table {
	case "user_profiles":
		rows, err := t.selectProfiles(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, goerrors.New("row not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}
		return json.Marshal(rows[0])
	case "assessments":
		rows, err := t.selectAssessments(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, goerrors.New("row not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}
		return json.Marshal(rows[0])
	default:
		return nil, errUnknownTable
	}
}

func (t *tableBackend) Update(ctx context.Context, table string, q mettle.Query, values any) ([]byte, error) {
	if table != "user_profiles" {
		return nil, errUnknownTable
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, err
	}

	query := t.backend.store.DB().NewUpdate().Model((*Profile)(nil)).
		Where("1 = 1")
	for column, value := range patch {
		switch column {
		case "display_name", "phone", "email":
			query = query.Set("? = ?", bun.Ident(column), value)
		}
	}
	for column, value := range q.Filters {
		query = query.Where("? = ?", bun.Ident(column), value)
	}

	if _, err := query.Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile update failed")
	}

	rows, err := t.selectProfiles(ctx, q)
	if err != nil {
		return nil, err
	}

	return json.Marshal(rows)
}

func (t *tableBackend) Insert(ctx context.Context, table string, values any) ([]byte, error) {
	switch table {
	case "assessments":
		raw, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}

		assessment := &Assessment{}
		if err := json.Unmarshal(raw, assessment); err != nil {
			return nil, err
		}
		if assessment.ID == uuid.Nil {
			assessment.ID = uuid.New()
		}

		created, err := t.backend.store.Assessments().Create(ctx, assessment)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "assessment insert failed")
		}

		return json.Marshal(created)
	default:
		return nil, errUnknownTable
	}
}

func (t *tableBackend) selectProfiles(ctx context.Context, q mettle.Query) ([]*Profile, error) {
	// Non-nil so an empty result serializes as [], matching the hosted
	// backend's wire shape.
	rows := []*Profile{}

	query := t.backend.store.DB().NewSelect().Model(&rows)
	for column, value := range q.Filters {
		query = query.Where("? = ?", bun.Ident(column), value)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile query failed")
	}

	return rows, nil
}

func (t *tableBackend) selectAssessments(ctx context.Context, q mettle.Query) ([]*Assessment, error) {
	rows := []*Assessment{}

	query := t.backend.store.DB().NewSelect().Model(&rows).
		Relation("Result")
	for column, value := range q.Filters {
		query = query.Where("? = ?", bun.Ident("asmt."+column), value)
	}
	if q.OrderBy != "" {
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		query = query.OrderExpr("? ?", bun.Ident("asmt."+q.OrderBy), bun.Safe(direction))
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "assessment query failed")
	}

	return rows, nil
}
