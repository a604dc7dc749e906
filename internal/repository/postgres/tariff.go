package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
)

type tariffRepository struct {
	BaseRepository
}

func NewTariffRepository(base BaseRepository) repository.TariffRepository {
	return &tariffRepository{base}
}

const tariffColumns = `id, name, type, active, created_at, updated_at`

func (r *tariffRepository) Create(ctx context.Context, tariff *model.Tariff) error {
	query := `
		INSERT INTO tariffs (id, name, type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	tariff.Touch(time.Now())
	if tariff.Type == "" {
		tariff.Type = model.TariffTypeSale
	}

	_, err := r.db.ExecContext(ctx, query,
		tariff.ID,
		tariff.Name,
		tariff.Type,
		tariff.Active,
		tariff.CreatedAt,
		tariff.UpdatedAt,
	)
	if err != nil {
		return writeError("tariff", err)
	}
	return nil
}

func (r *tariffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Tariff, error) {
	var tariff model.Tariff
	query := `SELECT ` + tariffColumns + ` FROM tariffs WHERE id = $1`
	if err := r.get(ctx, &tariff, "tariff", query, id); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (r *tariffRepository) GetByName(ctx context.Context, name string) (*model.Tariff, error) {
	var tariff model.Tariff
	query := `SELECT ` + tariffColumns + ` FROM tariffs WHERE name = $1`
	if err := r.get(ctx, &tariff, "tariff", query, name); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (r *tariffRepository) Update(ctx context.Context, tariff *model.Tariff) error {
	query := `
		UPDATE tariffs
		SET name = $1, type = $2, active = $3, updated_at = $4
		WHERE id = $5
	`
	tariff.UpdatedAt = time.Now()
	return r.execOne(ctx, "tariff", query, tariff.Name, tariff.Type, tariff.Active, tariff.UpdatedAt, tariff.ID)
}

// Delete retires a tariff together with its prices and unbinds it from references.
func (r *tariffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tariff_prices WHERE tariff_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete tariff prices: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE customer_references SET default_tariff_id = NULL, updated_at = $2 WHERE default_tariff_id = $1`,
			id, time.Now(),
		); err != nil {
			return fmt.Errorf("failed to unbind tariff: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM tariffs WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete tariff: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("tariff: %w", repository.ErrNotFound)
		}
		return nil
	})
}

func (r *tariffRepository) List(ctx context.Context) ([]*model.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM tariffs ORDER BY name ASC`

	var tariffs []*model.Tariff
	if err := r.db.SelectContext(ctx, &tariffs, query); err != nil {
		return nil, fmt.Errorf("failed to list tariffs: %w", err)
	}
	return tariffs, nil
}

func (r *tariffRepository) GetPrice(ctx context.Context, tariffID, examID uuid.UUID) (*model.TariffPrice, error) {
	query := `
		SELECT id, tariff_id, exam_id, price, created_at, updated_at
		FROM tariff_prices
		WHERE tariff_id = $1 AND exam_id = $2
	`
	var price model.TariffPrice
	if err := r.get(ctx, &price, "tariff price", query, tariffID, examID); err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *tariffRepository) PricesForExams(ctx context.Context, tariffID uuid.UUID, examIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	prices := make(map[uuid.UUID]decimal.Decimal, len(examIDs))
	if len(examIDs) == 0 {
		return prices, nil
	}

	ids := make([]string, len(examIDs))
	for i, id := range examIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT exam_id, price
		FROM tariff_prices
		WHERE tariff_id = $1 AND exam_id = ANY($2::uuid[])
	`
	var rows []struct {
		ExamID uuid.UUID       `db:"exam_id"`
		Price  decimal.Decimal `db:"price"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, tariffID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to load tariff prices: %w", err)
	}

	for _, row := range rows {
		prices[row.ExamID] = row.Price
	}
	return prices, nil
}

func (r *tariffRepository) ListPrices(ctx context.Context, tariffID uuid.UUID) ([]*model.TariffPriceView, error) {
	query := `
		SELECT
			tp.id, tp.tariff_id, tp.exam_id, tp.price, tp.created_at, tp.updated_at,
			a.name AS exam_name
		FROM tariff_prices tp
		JOIN analyses a ON a.id = tp.exam_id
		WHERE tp.tariff_id = $1
		ORDER BY a.name ASC
	`
	var prices []*model.TariffPriceView
	if err := r.db.SelectContext(ctx, &prices, query, tariffID); err != nil {
		return nil, fmt.Errorf("failed to list tariff prices: %w", err)
	}
	return prices, nil
}

func (r *tariffRepository) UpsertPrice(ctx context.Context, price *model.TariffPrice) error {
	query := `
		INSERT INTO tariff_prices (id, tariff_id, exam_id, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tariff_id, exam_id)
		DO UPDATE SET price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	price.Touch(time.Now())

	row := r.db.QueryRowxContext(ctx, query,
		price.ID,
		price.TariffID,
		price.ExamID,
		price.Price,
		price.CreatedAt,
		price.UpdatedAt,
	)
	if err := row.Scan(&price.ID, &price.CreatedAt); err != nil {
		return fmt.Errorf("failed to save tariff price: %w", err)
	}
	return nil
}

func (r *tariffRepository) InsertPriceIfAbsent(ctx context.Context, price *model.TariffPrice) (bool, error) {
	query := `
		INSERT INTO tariff_prices (id, tariff_id, exam_id, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tariff_id, exam_id) DO NOTHING
	`
	price.Touch(time.Now())

	result, err := r.db.ExecContext(ctx, query,
		price.ID,
		price.TariffID,
		price.ExamID,
		price.Price,
		price.CreatedAt,
		price.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert tariff price: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *tariffRepository) DeletePrice(ctx context.Context, tariffID, examID uuid.UUID) error {
	query := `DELETE FROM tariff_prices WHERE tariff_id = $1 AND exam_id = $2`
	return r.execOne(ctx, "tariff price", query, tariffID, examID)
}
