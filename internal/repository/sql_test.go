package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"podshare/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestPodRepository_AdjustAvailableSpotsIsGuarded(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPodRepository(db)
	ctx := context.Background()

	guarded := regexp.QuoteMeta(`UPDATE "pods" SET "available_spots"=available_spots + $1 WHERE id = $2 AND available_spots + $3 >= 0 AND available_spots + $4 <= total_spots`)

	t.Run("decrement succeeds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(guarded).
			WithArgs(-1, 7, -1, -1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.AdjustAvailableSpots(ctx, 7, -1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row matched on a full pod", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(guarded).
			WithArgs(-1, 7, -1, -1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "pods" WHERE id = $1`)).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		err := repo.AdjustAvailableSpots(ctx, 7, -1)
		assert.True(t, models.IsPodFull(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row matched on a missing pod", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(guarded).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "pods"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		err := repo.AdjustAvailableSpots(ctx, 9, -1)
		assert.True(t, models.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJoinRequestRepository_TransitionRejectsDecidedRequest(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewJoinRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "join_requests" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "join_requests"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pod_id", "user_id", "status"}).
			AddRow(3, 1, 2, "accepted"))

	err := repo.Transition(context.Background(), 3, models.JoinRequestPending, models.JoinRequestRejected, 1, time.Now())
	assert.Equal(t, models.CodeInvalidState, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinRequestRepository_CreateMapsUniqueViolation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewJoinRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "join_requests"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_join_requests_pending"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.JoinRequest{PodID: 1, UserID: 2, Status: models.JoinRequestPending})
	assert.Equal(t, models.CodeDuplicateRequest, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: pods.slug")))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestPodLocks_ReleasesEntries(t *testing.T) {
	l := NewPodLocks()
	unlockA := l.Lock(1)
	unlockB := l.Lock(2)
	assert.Equal(t, 2, l.Len())
	unlockA()
	unlockB()
	assert.Zero(t, l.Len())
}
