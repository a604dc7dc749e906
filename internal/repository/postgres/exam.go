package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
)

type examRepository struct {
	BaseRepository
}

func NewExamRepository(base BaseRepository) repository.ExamRepository {
	return &examRepository{base}
}

const examSelect = `
	SELECT
		a.id, a.code, a.name, a.description, a.kind, a.category_id,
		COALESCE(c.name, '') AS category_name,
		a.price, a.reference_price, a.active, a.created_at, a.updated_at
	FROM analyses a
	LEFT JOIN categories c ON c.id = a.category_id
`

func (r *examRepository) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	var exam model.Exam
	if err := r.get(ctx, &exam, "exam", examSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *examRepository) List(ctx context.Context, filters *model.ExamFilters) ([]*model.Exam, error) {
	var (
		where []string
		args  []interface{}
	)
	if filters != nil {
		if filters.OnlyActive {
			where = append(where, "a.active")
		}
		if filters.CategoryID != nil {
			args = append(args, *filters.CategoryID)
			where = append(where, fmt.Sprintf("a.category_id = $%d", len(args)))
		}
		if filters.Kind != "" {
			args = append(args, filters.Kind)
			where = append(where, fmt.Sprintf("a.kind = $%d", len(args)))
		}
		if filters.Search != "" {
			args = append(args, filters.Search)
			where = append(where, fmt.Sprintf("(a.name ILIKE '%%' || $%d || '%%' OR a.code ILIKE '%%' || $%d || '%%')", len(args), len(args)))
		}
	}

	query := examSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.name ASC"

	var exams []*model.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

func (r *examRepository) ListWithLegacyPrice(ctx context.Context) ([]*model.Exam, error) {
	query := examSelect + ` WHERE a.price > 0 ORDER BY a.name ASC`

	var exams []*model.Exam
	if err := r.db.SelectContext(ctx, &exams, query); err != nil {
		return nil, fmt.Errorf("failed to list exams with legacy price: %w", err)
	}
	return exams, nil
}
