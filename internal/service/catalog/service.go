package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

type CatalogServicer interface {
	ListExams(ctx context.Context, filters *model.ExamFilters, userID *uuid.UUID) ([]*model.CatalogEntry, error)
	Quote(ctx context.Context, examID uuid.UUID, userID *uuid.UUID) (*Quote, error)
}

// Quote is the caller's price for one exam. Available is false when no
// tariff or legacy price exists; the price is then omitted, never zero.
type Quote struct {
	ExamID     uuid.UUID        `json:"exam_id"`
	Available  bool             `json:"available"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	TariffName string           `json:"tariff_name,omitempty"`
	Source     string           `json:"source,omitempty"`
}

type Service struct {
	exams  repository.ExamRepository
	prices pricing.PriceResolver
}

func NewService(exams repository.ExamRepository, prices pricing.PriceResolver) *Service {
	return &Service{exams: exams, prices: prices}
}

// ListExams lists active exams with prices resolved for userID (nil for
// anonymous visitors).
func (s *Service) ListExams(ctx context.Context, filters *model.ExamFilters, userID *uuid.UUID) ([]*model.CatalogEntry, error) {
	if filters == nil {
		filters = &model.ExamFilters{}
	}
	filters.OnlyActive = true

	exams, err := s.exams.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	ids := make([]uuid.UUID, len(exams))
	for i, exam := range exams {
		ids[i] = exam.ID
	}
	resolved, err := s.prices.ResolvePrices(ctx, ids, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog prices: %w", err)
	}

	entries := make([]*model.CatalogEntry, 0, len(exams))
	for _, exam := range exams {
		entry := &model.CatalogEntry{Exam: *exam}
		if res, ok := resolved[exam.ID]; ok {
			price := res.Price
			entry.Price = &price
			entry.TariffName = res.TariffName
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) Quote(ctx context.Context, examID uuid.UUID, userID *uuid.UUID) (*Quote, error) {
	res, err := s.prices.ResolvePrice(ctx, examID, userID)
	switch {
	case errors.Is(err, pricing.ErrPriceNotFound):
		return &Quote{ExamID: examID}, nil
	case err != nil:
		if apperrors.IsKind(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve price: %w", err)
	}

	price := res.Price
	return &Quote{
		ExamID:     examID,
		Available:  true,
		Price:      &price,
		TariffName: res.TariffName,
		Source:     string(res.Source),
	}, nil
}
