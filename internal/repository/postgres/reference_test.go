package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
)

func TestReferenceCreate(t *testing.T) {
	base, mock := newMock(t)
	repo := NewReferenceRepository(base)
	ctx := context.Background()

	mock.ExpectExec(q("INSERT INTO customer_references")).
		WithArgs(sqlmock.AnyArg(), "Doctors", nil, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ref := &model.Reference{Name: "Doctors", Active: true}
	require.NoError(t, repo.Create(ctx, ref))
	assert.NotEqual(t, uuid.Nil, ref.ID)
	assert.False(t, ref.CreatedAt.IsZero())

	mock.ExpectExec(q("INSERT INTO customer_references")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(ctx, &model.Reference{Name: "Doctors"})
	assert.True(t, errors.Is(err, repository.ErrConflict))
}

func TestReferenceGetByName(t *testing.T) {
	base, mock := newMock(t)
	repo := NewReferenceRepository(base)
	ctx := context.Background()

	id, tariffID := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery(q("FROM customer_references WHERE name = $1 AND active")).
		WithArgs("Public").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "default_tariff_id", "active", "created_at", "updated_at"}).
			AddRow(id.String(), "Public", tariffID.String(), true, now, now))

	ref, err := repo.GetByName(ctx, "Public")
	require.NoError(t, err)
	assert.Equal(t, id, ref.ID)
	require.NotNil(t, ref.DefaultTariffID)
	assert.Equal(t, tariffID, *ref.DefaultTariffID)

	mock.ExpectQuery(q("FROM customer_references WHERE name = $1")).
		WithArgs("Nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByName(ctx, "Nobody")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestReferenceSetDefaultTariff(t *testing.T) {
	base, mock := newMock(t)
	repo := NewReferenceRepository(base)
	ctx := context.Background()

	refID, tariffID := uuid.New(), uuid.New()
	mock.ExpectExec(q("UPDATE customer_references")).
		WithArgs(tariffID.String(), sqlmock.AnyArg(), refID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetDefaultTariff(ctx, refID, &tariffID))

	mock.ExpectExec(q("UPDATE customer_references")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetDefaultTariff(ctx, uuid.New(), nil)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestReferenceAssignments(t *testing.T) {
	base, mock := newMock(t)
	repo := NewReferenceRepository(base)
	ctx := context.Background()

	userID, refID := uuid.New(), uuid.New()
	mock.ExpectExec(q("ON CONFLICT (user_id, reference_id) DO NOTHING")).
		WithArgs(userID.String(), refID.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Assign(ctx, userID, refID))

	mock.ExpectQuery(q("FROM user_references ur")).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"reference_id", "reference_name", "default_tariff_id", "assigned_at"}).
			AddRow(refID.String(), "Doctors", nil, time.Now()))

	assignments, err := repo.ListAssignments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "Doctors", assignments[0].ReferenceName)
	assert.Nil(t, assignments[0].DefaultTariffID)

	mock.ExpectExec(q("DELETE FROM user_references")).
		WithArgs(userID.String(), refID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Unassign(ctx, userID, refID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
