package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository/repotest"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) MigrateLegacyPrices(ctx context.Context, opts pricing.MigrationOptions) (*model.MigrationReport, error) {
	args := m.Called(ctx, opts.BatchSize, opts.DryRun)
	report, _ := args.Get(0).(*model.MigrationReport)
	return report, args.Error(1)
}

func seed(t *testing.T) (*repotest.Store, *model.Exam) {
	t.Helper()
	store := repotest.NewStore()
	exam := store.AddExam(&model.Exam{
		Name:        "Glucosa",
		Active:      true,
		LegacyPrice: decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
	})
	require.NoError(t, store.References().Create(context.Background(), &model.Reference{Name: "Public", Active: true}))
	return store, exam
}

func TestRunMigrate(t *testing.T) {
	store, _ := seed(t)
	migrator := pricing.NewMigrator(store.References(), store.Tariffs(), store.Exams(), pricing.MigrationConfig{
		PublicReference:   "Public",
		BaseTariff:        "Base",
		ReferentialTariff: "Referential with tax",
		ReferentialFactor: decimal.RequireFromString("0.8"),
	}, nil, nil)

	var out bytes.Buffer
	require.NoError(t, runMigrate(context.Background(), &out, migrator, 20, true))
	assert.Contains(t, out.String(), "dry run, nothing was written")
	assert.Equal(t, 0, store.PriceCount())

	out.Reset()
	require.NoError(t, runMigrate(context.Background(), &out, migrator, 20, false))
	assert.Contains(t, out.String(), "processed 1/1")
	assert.Contains(t, out.String(), "prices: 2 created, 0 skipped, 0 failed")
	assert.Contains(t, out.String(), `bound reference "Public"`)
	assert.Equal(t, 2, store.PriceCount())
}

func TestRunMigrateReportsFailures(t *testing.T) {
	ctx := context.Background()
	migrator := new(mockMigrator)
	migrator.On("MigrateLegacyPrices", ctx, 5, false).Return(&model.MigrationReport{
		Total:     1,
		Processed: 1,
		Failed:    1,
		Failures:  []model.MigrationFailure{{ExamName: "Glucosa", Tariff: "Base", Error: "connection reset"}},
	}, nil).Once()
	migrator.On("MigrateLegacyPrices", ctx, 5, true).Return(nil, errors.New("database is gone")).Once()

	var out bytes.Buffer
	err := runMigrate(ctx, &out, migrator, 5, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 prices failed")
	assert.Contains(t, out.String(), "failed: Glucosa")

	err = runMigrate(ctx, &out, migrator, 5, true)
	assert.EqualError(t, err, "migration stopped: database is gone")
	migrator.AssertExpectations(t)
}

func TestRunResolve(t *testing.T) {
	store, exam := seed(t)
	resolver := pricing.NewResolver(store.References(), store.Tariffs(), store.Exams(), pricing.Options{
		PublicReference: "Public",
		BaseTariff:      "Base",
	}, nil, nil)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runResolve(ctx, &out, resolver, exam.ID.String(), ""))
	assert.Contains(t, out.String(), "price:  12.50")
	assert.Contains(t, out.String(), "source: legacy")

	unpriced := store.AddExam(&model.Exam{Name: "Perfil hormonal", Active: true})
	out.Reset()
	require.NoError(t, runResolve(ctx, &out, resolver, unpriced.ID.String(), uuid.NewString()))
	assert.Contains(t, out.String(), "no price available")

	err := runResolve(ctx, &out, resolver, uuid.NewString(), "")
	assert.True(t, apperrors.IsKind(err, apperrors.ErrNotFound), "unknown exams are an error")

	err = runResolve(ctx, &out, resolver, "not-an-id", "")
	assert.EqualError(t, err, `invalid exam id "not-an-id"`)
	err = runResolve(ctx, &out, resolver, exam.ID.String(), "x")
	assert.EqualError(t, err, `invalid user id "x"`)
}
