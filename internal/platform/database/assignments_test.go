package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *database.Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, database.NewRepository(mock, "targeting.definitions", "targeting.assignments")
}

func TestCreateAssignmentIfAbsent_NewAssignment(t *testing.T) {
	mock, repo := newMockRepo(t)

	assignment := types.Assignment{
		ExperimentKey: "checkout-button-color",
		SubjectID:     "user-1",
		VariantKey:    "green",
		AssignedAt:    time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO experiment_assignments").
		WithArgs(assignment.ExperimentKey, assignment.SubjectID, assignment.VariantKey, assignment.AssignedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "targeting.assignments", assignment.ExperimentKey, "ASSIGNED",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	stored, created, err := repo.CreateAssignmentIfAbsent(context.Background(), assignment, map[string]any{"country": "DE"})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, assignment, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignmentIfAbsent_ConflictReturnsWinner(t *testing.T) {
	mock, repo := newMockRepo(t)

	loser := types.Assignment{
		ExperimentKey: "checkout-button-color",
		SubjectID:     "user-1",
		VariantKey:    "green",
		AssignedAt:    time.Now().UTC(),
	}
	winnerTime := loser.AssignedAt.Add(-time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO experiment_assignments").
		WithArgs(loser.ExperimentKey, loser.SubjectID, loser.VariantKey, loser.AssignedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT experiment_key, subject_id, variant_key, assigned_at").
		WithArgs(loser.ExperimentKey, loser.SubjectID).
		WillReturnRows(pgxmock.NewRows([]string{"experiment_key", "subject_id", "variant_key", "assigned_at"}).
			AddRow("checkout-button-color", "user-1", "control", winnerTime))
	mock.ExpectRollback()

	stored, created, err := repo.CreateAssignmentIfAbsent(context.Background(), loser, nil)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "control", stored.VariantKey)
	assert.Equal(t, winnerTime, stored.AssignedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAssignment_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT experiment_key, subject_id, variant_key, assigned_at").
		WithArgs("checkout-button-color", "ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetAssignment(context.Background(), "checkout-button-color", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAssignments(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT variant_key, COUNT").
		WithArgs("checkout-button-color").
		WillReturnRows(pgxmock.NewRows([]string{"variant_key", "count"}).
			AddRow("control", int64(120)).
			AddRow("green", int64(115)))

	counts, total, err := repo.CountAssignments(context.Background(), "checkout-button-color")
	require.NoError(t, err)

	assert.Equal(t, int64(235), total)
	assert.Equal(t, int64(120), counts["control"])
	assert.Equal(t, int64(115), counts["green"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
