package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
)

type referenceRepository struct {
	BaseRepository
}

func NewReferenceRepository(base BaseRepository) repository.ReferenceRepository {
	return &referenceRepository{base}
}

const referenceColumns = `id, name, default_tariff_id, active, created_at, updated_at`

func (r *referenceRepository) Create(ctx context.Context, ref *model.Reference) error {
	query := `
		INSERT INTO customer_references (
			id, name, default_tariff_id, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	ref.Touch(time.Now())

	_, err := r.db.ExecContext(ctx, query,
		ref.ID,
		ref.Name,
		ref.DefaultTariffID,
		ref.Active,
		ref.CreatedAt,
		ref.UpdatedAt,
	)
	if err != nil {
		return writeError("reference", err)
	}
	return nil
}

func (r *referenceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reference, error) {
	var ref model.Reference
	query := `SELECT ` + referenceColumns + ` FROM customer_references WHERE id = $1`
	if err := r.get(ctx, &ref, "reference", query, id); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *referenceRepository) GetByName(ctx context.Context, name string) (*model.Reference, error) {
	var ref model.Reference
	query := `SELECT ` + referenceColumns + ` FROM customer_references WHERE name = $1 AND active`
	if err := r.get(ctx, &ref, "reference", query, name); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *referenceRepository) Update(ctx context.Context, ref *model.Reference) error {
	query := `
		UPDATE customer_references
		SET name = $1, default_tariff_id = $2, active = $3, updated_at = $4
		WHERE id = $5
	`
	ref.UpdatedAt = time.Now()
	return r.execOne(ctx, "reference", query, ref.Name, ref.DefaultTariffID, ref.Active, ref.UpdatedAt, ref.ID)
}

func (r *referenceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "reference", `DELETE FROM customer_references WHERE id = $1`, id)
}

func (r *referenceRepository) List(ctx context.Context) ([]*model.Reference, error) {
	query := `SELECT ` + referenceColumns + ` FROM customer_references ORDER BY name ASC`

	var refs []*model.Reference
	if err := r.db.SelectContext(ctx, &refs, query); err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	return refs, nil
}

func (r *referenceRepository) SetDefaultTariff(ctx context.Context, referenceID uuid.UUID, tariffID *uuid.UUID) error {
	query := `
		UPDATE customer_references
		SET default_tariff_id = $1, updated_at = $2
		WHERE id = $3
	`
	return r.execOne(ctx, "reference", query, tariffID, time.Now(), referenceID)
}

func (r *referenceRepository) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*model.ReferenceAssignment, error) {
	query := `
		SELECT
			cr.id AS reference_id,
			cr.name AS reference_name,
			cr.default_tariff_id,
			ur.created_at AS assigned_at
		FROM user_references ur
		JOIN customer_references cr ON cr.id = ur.reference_id
		WHERE ur.user_id = $1 AND cr.active
		ORDER BY ur.created_at DESC, cr.name ASC
	`

	var assignments []*model.ReferenceAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list reference assignments: %w", err)
	}
	return assignments, nil
}

func (r *referenceRepository) Assign(ctx context.Context, userID, referenceID uuid.UUID) error {
	query := `
		INSERT INTO user_references (user_id, reference_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, reference_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, referenceID, time.Now()); err != nil {
		return fmt.Errorf("failed to assign reference: %w", err)
	}
	return nil
}

func (r *referenceRepository) Unassign(ctx context.Context, userID, referenceID uuid.UUID) error {
	query := `DELETE FROM user_references WHERE user_id = $1 AND reference_id = $2`
	return r.execOne(ctx, "reference assignment", query, userID, referenceID)
}
