package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
)

const defaultBatchSize = 20

type MigrationConfig struct {
	PublicReference   string
	BaseTariff        string
	ReferentialTariff string
	ReferentialRefs   []string
	ReferentialFactor decimal.Decimal
}

type MigrationOptions struct {
	BatchSize int
	// DryRun reports what would be written without writing.
	DryRun bool
	// Progress is called after every batch.
	Progress func(processed, total int)
}

// Migrator moves the flat analyses.price / reference_price columns into
// tariff price rows. Rows that already exist are skipped, so a partial run
// is repaired by running it again.
type Migrator struct {
	references repository.ReferenceRepository
	tariffs    repository.TariffRepository
	exams      repository.ExamRepository
	cfg        MigrationConfig
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewMigrator(
	references repository.ReferenceRepository,
	tariffs repository.TariffRepository,
	exams repository.ExamRepository,
	cfg MigrationConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *Migrator {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{
		references: references,
		tariffs:    tariffs,
		exams:      exams,
		cfg:        cfg,
		metrics:    m,
		log:        log,
	}
}

// ReferentialPrice is the exam's reference price when set, otherwise its
// flat price scaled by factor and rounded to cents.
func ReferentialPrice(exam *model.Exam, factor decimal.Decimal) decimal.Decimal {
	if exam.HasLegacyReferencePrice() {
		return exam.LegacyReferencePrice.Decimal
	}
	return exam.LegacyPrice.Decimal.Mul(factor).Round(2)
}

func (m *Migrator) MigrateLegacyPrices(ctx context.Context, opts MigrationOptions) (*model.MigrationReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	report := &model.MigrationReport{DryRun: opts.DryRun}

	base, err := m.ensureTariff(ctx, m.cfg.BaseTariff, opts.DryRun, report)
	if err != nil {
		return nil, err
	}
	referential, err := m.ensureTariff(ctx, m.cfg.ReferentialTariff, opts.DryRun, report)
	if err != nil {
		return nil, err
	}

	exams, err := m.exams.ListWithLegacyPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams with legacy price: %w", err)
	}
	report.Total = len(exams)
	report.Log = append(report.Log, fmt.Sprintf("%d exams with a legacy price", report.Total))

	for start := 0; start < len(exams); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			report.Log = append(report.Log, fmt.Sprintf("stopped after %d/%d: %v", report.Processed, report.Total, err))
			return report, err
		}

		end := start + opts.BatchSize
		if end > len(exams) {
			end = len(exams)
		}
		for _, exam := range exams[start:end] {
			m.migratePrice(ctx, base, exam, exam.LegacyPrice.Decimal, opts.DryRun, report)
			m.migratePrice(ctx, referential, exam, ReferentialPrice(exam, m.cfg.ReferentialFactor), opts.DryRun, report)
			report.Processed++
		}

		line := fmt.Sprintf("processed %d/%d (created %d, skipped %d, failed %d)",
			report.Processed, report.Total, report.Created, report.Skipped, report.Failed)
		report.Log = append(report.Log, line)
		m.log.Info("tariff migration progress",
			"processed", report.Processed,
			"total", report.Total,
			"created", report.Created,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
		if opts.Progress != nil {
			opts.Progress(report.Processed, report.Total)
		}
	}

	m.bindReference(ctx, m.cfg.PublicReference, base, opts.DryRun, report)
	for _, name := range m.cfg.ReferentialRefs {
		m.bindReference(ctx, name, referential, opts.DryRun, report)
	}

	return report, nil
}

// ensureTariff returns the named tariff, creating it when missing. In a dry
// run a missing tariff is returned unsaved with a nil id.
func (m *Migrator) ensureTariff(ctx context.Context, name string, dryRun bool, report *model.MigrationReport) (*model.Tariff, error) {
	tariff, err := m.tariffs.GetByName(ctx, name)
	if err == nil {
		return tariff, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get tariff %q: %w", name, err)
	}

	tariff = &model.Tariff{Name: name, Type: model.TariffTypeSale, Active: true}
	if dryRun {
		report.Log = append(report.Log, fmt.Sprintf("would create tariff %q", name))
		return tariff, nil
	}
	if err := m.tariffs.Create(ctx, tariff); err != nil {
		return nil, fmt.Errorf("failed to create tariff %q: %w", name, err)
	}
	report.Log = append(report.Log, fmt.Sprintf("created tariff %q", name))
	return tariff, nil
}

func (m *Migrator) migratePrice(ctx context.Context, tariff *model.Tariff, exam *model.Exam, price decimal.Decimal, dryRun bool, report *model.MigrationReport) {
	if dryRun {
		if tariff.ID == uuid.Nil {
			m.record(report, "created")
			return
		}
		_, err := m.tariffs.GetPrice(ctx, tariff.ID, exam.ID)
		switch {
		case err == nil:
			m.record(report, "skipped")
		case errors.Is(err, repository.ErrNotFound):
			m.record(report, "created")
		default:
			m.fail(report, tariff, exam, err)
		}
		return
	}

	row := &model.TariffPrice{
		TariffID: tariff.ID,
		ExamID:   exam.ID,
		Price:    price,
	}
	row.Touch(time.Now())

	created, err := m.tariffs.InsertPriceIfAbsent(ctx, row)
	switch {
	case err != nil:
		m.fail(report, tariff, exam, err)
	case created:
		m.record(report, "created")
	default:
		m.record(report, "skipped")
	}
}

func (m *Migrator) record(report *model.MigrationReport, outcome string) {
	switch outcome {
	case "created":
		report.Created++
	case "skipped":
		report.Skipped++
	}
	m.metrics.MigrationItems.WithLabelValues(outcome).Inc()
}

func (m *Migrator) fail(report *model.MigrationReport, tariff *model.Tariff, exam *model.Exam, err error) {
	report.Failed++
	report.Failures = append(report.Failures, model.MigrationFailure{
		ExamID:   exam.ID,
		ExamName: exam.Name,
		Tariff:   tariff.Name,
		Error:    err.Error(),
	})
	report.Log = append(report.Log, fmt.Sprintf("error: %s / %s: %v", exam.Name, tariff.Name, err))
	m.metrics.MigrationItems.WithLabelValues("failed").Inc()
	m.log.Error(err, "failed to migrate legacy price", "exam_id", exam.ID.String(), "tariff", tariff.Name)
}

func (m *Migrator) bindReference(ctx context.Context, name string, tariff *model.Tariff, dryRun bool, report *model.MigrationReport) {
	ref, err := m.references.GetByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		report.Log = append(report.Log, fmt.Sprintf("reference %q not found, not bound", name))
		return
	}
	if err != nil {
		report.Log = append(report.Log, fmt.Sprintf("error: reference %q: %v", name, err))
		m.log.Error(err, "failed to get reference", "reference", name)
		return
	}

	if ref.DefaultTariffID != nil && *ref.DefaultTariffID == tariff.ID {
		report.Log = append(report.Log, fmt.Sprintf("reference %q already bound to %q", name, tariff.Name))
		return
	}
	if !dryRun {
		tariffID := tariff.ID
		if err := m.references.SetDefaultTariff(ctx, ref.ID, &tariffID); err != nil {
			report.Log = append(report.Log, fmt.Sprintf("error: binding %q: %v", name, err))
			m.log.Error(err, "failed to bind reference", "reference", name)
			return
		}
	}
	report.References = append(report.References, name)
	report.Log = append(report.Log, fmt.Sprintf("reference %q -> %q", name, tariff.Name))
}
