package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned (wrapped) when a write violates a uniqueness rule.
var ErrConflict = errors.New("record already exists")

// All repository interfaces in one file
type (
	// ReferenceRepository handles customer references and their user assignments
	ReferenceRepository interface {
		Create(ctx context.Context, ref *model.Reference) error
		Get(ctx context.Context, id uuid.UUID) (*model.Reference, error)
		GetByName(ctx context.Context, name string) (*model.Reference, error)
		Update(ctx context.Context, ref *model.Reference) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Reference, error)
		SetDefaultTariff(ctx context.Context, referenceID uuid.UUID, tariffID *uuid.UUID) error

		// ListAssignments returns the user's active references, most recently assigned first.
		ListAssignments(ctx context.Context, userID uuid.UUID) ([]*model.ReferenceAssignment, error)
		Assign(ctx context.Context, userID, referenceID uuid.UUID) error
		Unassign(ctx context.Context, userID, referenceID uuid.UUID) error
	}

	TariffRepository interface {
		Create(ctx context.Context, tariff *model.Tariff) error
		Get(ctx context.Context, id uuid.UUID) (*model.Tariff, error)
		GetByName(ctx context.Context, name string) (*model.Tariff, error)
		Update(ctx context.Context, tariff *model.Tariff) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Tariff, error)

		GetPrice(ctx context.Context, tariffID, examID uuid.UUID) (*model.TariffPrice, error)
		// PricesForExams returns the prices defined under tariffID for the given exams.
		// Exams without a row are absent from the map.
		PricesForExams(ctx context.Context, tariffID uuid.UUID, examIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
		ListPrices(ctx context.Context, tariffID uuid.UUID) ([]*model.TariffPriceView, error)
		UpsertPrice(ctx context.Context, price *model.TariffPrice) error
		// InsertPriceIfAbsent reports false when the (tariff, exam) pair already had a price.
		InsertPriceIfAbsent(ctx context.Context, price *model.TariffPrice) (bool, error)
		DeletePrice(ctx context.Context, tariffID, examID uuid.UUID) error
	}

	ExamRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Exam, error)
		List(ctx context.Context, filters *model.ExamFilters) ([]*model.Exam, error)
		// ListWithLegacyPrice returns exams whose flat price is greater than zero.
		ListWithLegacyPrice(ctx context.Context) ([]*model.Exam, error)
	}

	CategoryRepository interface {
		Create(ctx context.Context, category *model.Category) error
		Get(ctx context.Context, id uuid.UUID) (*model.Category, error)
		Update(ctx context.Context, category *model.Category) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Category, error)
	}

	ArticleRepository interface {
		Create(ctx context.Context, article *model.Article) error
		Get(ctx context.Context, id uuid.UUID) (*model.Article, error)
		GetBySlug(ctx context.Context, slug string) (*model.Article, error)
		Update(ctx context.Context, article *model.Article) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, onlyPublished bool) ([]*model.Article, error)
	}
)
