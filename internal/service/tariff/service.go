package tariff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
)

type TariffServicer interface {
	ListTariffs(ctx context.Context) ([]*model.Tariff, error)
	GetTariff(ctx context.Context, id uuid.UUID) (*TariffDetail, error)
	CreateTariff(ctx context.Context, tariff *model.Tariff) error
	UpdateTariff(ctx context.Context, tariff *model.Tariff) error
	DeleteTariff(ctx context.Context, id uuid.UUID) error

	SetPrice(ctx context.Context, tariffID, examID uuid.UUID, price decimal.Decimal) (*model.TariffPrice, error)
	DeletePrice(ctx context.Context, tariffID, examID uuid.UUID) error

	ListReferences(ctx context.Context) ([]*model.Reference, error)
	CreateReference(ctx context.Context, ref *model.Reference) error
	UpdateReference(ctx context.Context, ref *model.Reference) error
	DeleteReference(ctx context.Context, id uuid.UUID) error
	BindTariff(ctx context.Context, referenceID uuid.UUID, tariffID *uuid.UUID) error

	ListUserReferences(ctx context.Context, userID uuid.UUID) ([]*model.ReferenceAssignment, error)
	AssignUser(ctx context.Context, userID, referenceID uuid.UUID) error
	UnassignUser(ctx context.Context, userID, referenceID uuid.UUID) error

	MigrateLegacyPrices(ctx context.Context, dryRun bool) (*model.MigrationReport, error)
}

// TariffDetail is a tariff with its price list.
type TariffDetail struct {
	*model.Tariff
	Prices []*model.TariffPriceView `json:"prices"`
}

type Service struct {
	references repository.ReferenceRepository
	tariffs    repository.TariffRepository
	exams      repository.ExamRepository
	resolver   pricing.PriceResolver
	migrator   *pricing.Migrator
	batchSize  int
	log        *logger.Logger
}

func NewService(
	references repository.ReferenceRepository,
	tariffs repository.TariffRepository,
	exams repository.ExamRepository,
	resolver pricing.PriceResolver,
	migrator *pricing.Migrator,
	batchSize int,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		references: references,
		tariffs:    tariffs,
		exams:      exams,
		resolver:   resolver,
		migrator:   migrator,
		batchSize:  batchSize,
		log:        log,
	}
}

func (s *Service) ListTariffs(ctx context.Context) ([]*model.Tariff, error) {
	tariffs, err := s.tariffs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tariffs: %w", err)
	}
	return tariffs, nil
}

func (s *Service) GetTariff(ctx context.Context, id uuid.UUID) (*TariffDetail, error) {
	t, err := s.tariffs.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "tariff")
	}
	prices, err := s.tariffs.ListPrices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list tariff prices: %w", err)
	}
	if prices == nil {
		prices = []*model.TariffPriceView{}
	}
	return &TariffDetail{Tariff: t, Prices: prices}, nil
}

func (s *Service) CreateTariff(ctx context.Context, t *model.Tariff) error {
	t.ID = uuid.Nil
	t.Name = strings.TrimSpace(t.Name)
	if t.Type == "" {
		t.Type = model.TariffTypeSale
	}
	if err := validateTariff(t); err != nil {
		return err
	}

	if err := s.tariffs.Create(ctx, t); err != nil {
		return writeErr(err, "tariff", "create")
	}
	s.resolver.Invalidate()
	return nil
}

func (s *Service) UpdateTariff(ctx context.Context, t *model.Tariff) error {
	existing, err := s.tariffs.Get(ctx, t.ID)
	if err != nil {
		return notFoundOr(err, "tariff")
	}

	t.Name = strings.TrimSpace(t.Name)
	if t.Type == "" {
		t.Type = existing.Type
	}
	t.CreatedAt = existing.CreatedAt
	if err := validateTariff(t); err != nil {
		return err
	}

	if err := s.tariffs.Update(ctx, t); err != nil {
		return writeErr(err, "tariff", "update")
	}
	s.resolver.Invalidate()
	return nil
}

// DeleteTariff removes the tariff and its prices; references bound to it
// fall back to the public rules.
func (s *Service) DeleteTariff(ctx context.Context, id uuid.UUID) error {
	if err := s.tariffs.Delete(ctx, id); err != nil {
		return notFoundOr(err, "tariff")
	}
	s.resolver.Invalidate()
	s.log.Info("tariff deleted", "tariff_id", id.String())
	return nil
}

// SetPrice creates or replaces the price of an exam under a tariff.
func (s *Service) SetPrice(ctx context.Context, tariffID, examID uuid.UUID, price decimal.Decimal) (*model.TariffPrice, error) {
	if price.IsNegative() {
		return nil, apperrors.BadRequest("price must not be negative", nil)
	}
	if !price.Equal(price.Round(2)) {
		return nil, apperrors.BadRequest("price has more than two decimals", nil)
	}
	if _, err := s.tariffs.Get(ctx, tariffID); err != nil {
		return nil, notFoundOr(err, "tariff")
	}
	if _, err := s.exams.Get(ctx, examID); err != nil {
		return nil, notFoundOr(err, "exam")
	}

	row := &model.TariffPrice{TariffID: tariffID, ExamID: examID, Price: price}
	row.Touch(time.Now())
	if err := s.tariffs.UpsertPrice(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to set price: %w", err)
	}
	return row, nil
}

func (s *Service) DeletePrice(ctx context.Context, tariffID, examID uuid.UUID) error {
	if err := s.tariffs.DeletePrice(ctx, tariffID, examID); err != nil {
		return notFoundOr(err, "tariff price")
	}
	return nil
}

func (s *Service) ListReferences(ctx context.Context) ([]*model.Reference, error) {
	refs, err := s.references.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	return refs, nil
}

func (s *Service) CreateReference(ctx context.Context, ref *model.Reference) error {
	ref.ID = uuid.Nil
	ref.Name = strings.TrimSpace(ref.Name)
	if ref.Name == "" {
		return apperrors.BadRequest("reference name is required", nil)
	}
	if err := s.checkTariff(ctx, ref.DefaultTariffID); err != nil {
		return err
	}

	if err := s.references.Create(ctx, ref); err != nil {
		return writeErr(err, "reference", "create")
	}
	s.resolver.Invalidate()
	return nil
}

func (s *Service) UpdateReference(ctx context.Context, ref *model.Reference) error {
	existing, err := s.references.Get(ctx, ref.ID)
	if err != nil {
		return notFoundOr(err, "reference")
	}
	ref.Name = strings.TrimSpace(ref.Name)
	if ref.Name == "" {
		return apperrors.BadRequest("reference name is required", nil)
	}
	if err := s.checkTariff(ctx, ref.DefaultTariffID); err != nil {
		return err
	}
	ref.CreatedAt = existing.CreatedAt

	if err := s.references.Update(ctx, ref); err != nil {
		return writeErr(err, "reference", "update")
	}
	s.resolver.Invalidate()
	return nil
}

func (s *Service) DeleteReference(ctx context.Context, id uuid.UUID) error {
	if err := s.references.Delete(ctx, id); err != nil {
		return notFoundOr(err, "reference")
	}
	s.resolver.Invalidate()
	return nil
}

// BindTariff sets the reference's default tariff; nil unbinds it.
func (s *Service) BindTariff(ctx context.Context, referenceID uuid.UUID, tariffID *uuid.UUID) error {
	if err := s.checkTariff(ctx, tariffID); err != nil {
		return err
	}
	if err := s.references.SetDefaultTariff(ctx, referenceID, tariffID); err != nil {
		return notFoundOr(err, "reference")
	}
	s.resolver.Invalidate()
	return nil
}

func (s *Service) ListUserReferences(ctx context.Context, userID uuid.UUID) ([]*model.ReferenceAssignment, error) {
	assignments, err := s.references.ListAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user references: %w", err)
	}
	if assignments == nil {
		assignments = []*model.ReferenceAssignment{}
	}
	return assignments, nil
}

func (s *Service) AssignUser(ctx context.Context, userID, referenceID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperrors.BadRequest("user id is required", nil)
	}
	if _, err := s.references.Get(ctx, referenceID); err != nil {
		return notFoundOr(err, "reference")
	}
	if err := s.references.Assign(ctx, userID, referenceID); err != nil {
		return fmt.Errorf("failed to assign reference: %w", err)
	}
	return nil
}

func (s *Service) UnassignUser(ctx context.Context, userID, referenceID uuid.UUID) error {
	if err := s.references.Unassign(ctx, userID, referenceID); err != nil {
		return notFoundOr(err, "user reference")
	}
	return nil
}

// MigrateLegacyPrices runs the flat-price migration. It may be repeated.
func (s *Service) MigrateLegacyPrices(ctx context.Context, dryRun bool) (*model.MigrationReport, error) {
	report, err := s.migrator.MigrateLegacyPrices(ctx, pricing.MigrationOptions{
		BatchSize: s.batchSize,
		DryRun:    dryRun,
	})
	if !dryRun {
		s.resolver.Invalidate()
	}
	if err != nil {
		return report, fmt.Errorf("legacy price migration failed: %w", err)
	}
	s.log.Info("legacy price migration finished",
		"dry_run", dryRun,
		"processed", report.Processed,
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Service) checkTariff(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.tariffs.Get(ctx, *id); err != nil {
		return notFoundOr(err, "tariff")
	}
	return nil
}

func validateTariff(t *model.Tariff) error {
	if t.Name == "" {
		return apperrors.BadRequest("tariff name is required", nil)
	}
	if t.Type != model.TariffTypeSale {
		return apperrors.BadRequest(fmt.Sprintf("unsupported tariff type %q", t.Type), nil)
	}
	return nil
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(entity, err)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func writeErr(err error, entity, op string) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict(fmt.Sprintf("%s already exists", entity), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(entity, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, entity, err)
}
