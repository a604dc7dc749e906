package pricing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository/repotest"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

type fixture struct {
	store       *repotest.Store
	resolver    *pricing.Resolver
	base        *model.Tariff
	referential *model.Tariff
	public      *model.Reference
	doctors     *model.Reference
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repotest.NewStore()

	f := &fixture{store: store}
	f.base = &model.Tariff{Name: "Base", Active: true}
	f.referential = &model.Tariff{Name: "Referential", Active: true}
	require.NoError(t, store.Tariffs().Create(ctx, f.base))
	require.NoError(t, store.Tariffs().Create(ctx, f.referential))

	f.public = &model.Reference{Name: "Public", DefaultTariffID: &f.base.ID, Active: true}
	f.doctors = &model.Reference{Name: "Doctors", DefaultTariffID: &f.referential.ID, Active: true}
	require.NoError(t, store.References().Create(ctx, f.public))
	require.NoError(t, store.References().Create(ctx, f.doctors))

	f.resolver = pricing.NewResolver(store.References(), store.Tariffs(), store.Exams(), pricing.Options{
		PublicReference:   "Public",
		BaseTariff:        "Base",
		ReferentialTariff: "Referential",
	}, nil, nil)
	return f
}

func (f *fixture) exam(t *testing.T, name string, legacy, legacyRef string) *model.Exam {
	t.Helper()
	exam := &model.Exam{Name: name, Kind: model.ExamKindAnalysis, Active: true}
	if legacy != "" {
		exam.LegacyPrice = decimal.NewNullDecimal(decimal.RequireFromString(legacy))
	}
	if legacyRef != "" {
		exam.LegacyReferencePrice = decimal.NewNullDecimal(decimal.RequireFromString(legacyRef))
	}
	return f.store.AddExam(exam)
}

func (f *fixture) price(t *testing.T, tariff *model.Tariff, exam *model.Exam, price string) {
	t.Helper()
	require.NoError(t, f.store.Tariffs().UpsertPrice(context.Background(), &model.TariffPrice{
		TariffID: tariff.ID,
		ExamID:   exam.ID,
		Price:    decimal.RequireFromString(price),
	}))
}

func TestResolvePrice_DoctorGetsReferentialTariff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.exam(t, "Hemograma", "120", "")
	f.price(t, f.base, exam, "100")
	f.price(t, f.referential, exam, "80")

	doctor := uuid.New()
	require.NoError(t, f.store.References().Assign(ctx, doctor, f.doctors.ID))

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, &doctor)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(80).Equal(res.Price))
	assert.Equal(t, "Referential", res.TariffName)
	assert.Equal(t, "Doctors", res.ReferenceName)
	assert.Equal(t, model.PriceSourceTariff, res.Source)
}

func TestResolvePrice_AnonymousUsesPublicTariff(t *testing.T) {
	f := newFixture(t)
	exam := f.exam(t, "Glucosa", "30", "")
	f.price(t, f.base, exam, "25")

	res, err := f.resolver.ResolvePrice(context.Background(), exam.ID, nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(res.Price), "tariff price wins over the legacy price")
	assert.Equal(t, "Base", res.TariffName)
}

func TestResolvePrice_UserWithoutAssignmentIsPublic(t *testing.T) {
	f := newFixture(t)
	exam := f.exam(t, "Urea", "", "")
	f.price(t, f.base, exam, "40")

	user := uuid.New()
	res, err := f.resolver.ResolvePrice(context.Background(), exam.ID, &user)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(res.Price))
	assert.Equal(t, "Public", res.ReferenceName)
}

func TestResolvePrice_PublicWithoutBindingFallsBackToBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.References().SetDefaultTariff(ctx, f.public.ID, nil))
	exam := f.exam(t, "Perfil lipídico", "", "")
	f.price(t, f.base, exam, "55.50")

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "55.5", res.Price.String())
	assert.Equal(t, "Base", res.TariffName)
}

func TestResolvePrice_MostRecentAssignmentWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.exam(t, "TSH", "", "")
	f.price(t, f.base, exam, "70")
	f.price(t, f.referential, exam, "60")

	companies := &model.Reference{Name: "Companies", DefaultTariffID: &f.base.ID, Active: true}
	require.NoError(t, f.store.References().Create(ctx, companies))

	user := uuid.New()
	require.NoError(t, f.store.References().Assign(ctx, user, f.doctors.ID))
	require.NoError(t, f.store.References().Assign(ctx, user, companies.ID))

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, &user)
	require.NoError(t, err)
	assert.Equal(t, "Companies", res.ReferenceName)
	assert.True(t, decimal.NewFromInt(70).Equal(res.Price))
}

func TestResolvePrice_SkipsReferenceWithoutPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.exam(t, "Ferritina", "", "")
	f.price(t, f.referential, exam, "90")

	companies := &model.Reference{Name: "Companies", DefaultTariffID: &f.base.ID, Active: true}
	require.NoError(t, f.store.References().Create(ctx, companies))

	user := uuid.New()
	require.NoError(t, f.store.References().Assign(ctx, user, f.doctors.ID))
	require.NoError(t, f.store.References().Assign(ctx, user, companies.ID))

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, &user)
	require.NoError(t, err)
	assert.Equal(t, "Doctors", res.ReferenceName)
	assert.True(t, decimal.NewFromInt(90).Equal(res.Price))
}

func TestResolvePrice_LegacyFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.exam(t, "Creatinina", "50", "42")

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(res.Price))
	assert.Equal(t, model.PriceSourceLegacy, res.Source)
	assert.Equal(t, "Base", res.TariffName)

	doctor := uuid.New()
	require.NoError(t, f.store.References().Assign(ctx, doctor, f.doctors.ID))
	res, err = f.resolver.ResolvePrice(ctx, exam.ID, &doctor)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(42).Equal(res.Price), "doctors read the legacy reference price")
	assert.Equal(t, "Referential", res.TariffName)
}

func TestResolvePrice_ZeroTariffPriceIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.exam(t, "Campana gratuita", "100", "")
	f.price(t, f.base, exam, "0")

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.Price.IsZero())
	assert.Equal(t, model.PriceSourceTariff, res.Source)
	assert.Equal(t, "Base", res.TariffName)

	got, err := f.resolver.ResolvePrices(ctx, []uuid.UUID{exam.ID}, nil)
	require.NoError(t, err)
	require.Contains(t, got, exam.ID)
	assert.True(t, got[exam.ID].Price.IsZero())
	assert.Equal(t, model.PriceSourceTariff, got[exam.ID].Source)
}

func TestResolvePrice_NoPrice(t *testing.T) {
	f := newFixture(t)
	exam := f.exam(t, "Sin precio", "", "")
	zero := f.exam(t, "Precio cero", "0", "")

	for _, id := range []uuid.UUID{exam.ID, zero.ID} {
		res, err := f.resolver.ResolvePrice(context.Background(), id, nil)
		assert.Nil(t, res)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pricing.ErrPriceNotFound))
		assert.True(t, apperrors.IsKind(err, apperrors.ErrNotFound))
	}
}

func TestResolvePrice_UnknownExam(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.ResolvePrice(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrNotFound))
	assert.False(t, errors.Is(err, pricing.ErrPriceNotFound))
}

func TestResolvePrices_OmitsUnpriced(t *testing.T) {
	f := newFixture(t)
	priced := f.exam(t, "A", "", "")
	legacy := f.exam(t, "B", "15", "")
	unpriced := f.exam(t, "C", "", "")
	f.price(t, f.base, priced, "10")

	got, err := f.resolver.ResolvePrices(context.Background(), []uuid.UUID{priced.ID, legacy.ID, unpriced.ID}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.PriceSourceTariff, got[priced.ID].Source)
	assert.Equal(t, model.PriceSourceLegacy, got[legacy.ID].Source)
	assert.NotContains(t, got, unpriced.ID)
}

func TestResolver_InvalidateDropsDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.exam(t, "PSA", "", "")
	f.price(t, f.base, exam, "60")
	f.price(t, f.referential, exam, "45")

	res, err := f.resolver.ResolvePrice(ctx, exam.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Base", res.TariffName)

	require.NoError(t, f.store.References().SetDefaultTariff(ctx, f.public.ID, &f.referential.ID))
	res, err = f.resolver.ResolvePrice(ctx, exam.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Base", res.TariffName, "binding is cached")

	f.resolver.Invalidate()
	res, err = f.resolver.ResolvePrice(ctx, exam.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Referential", res.TariffName)
}
