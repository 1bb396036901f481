package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pizzachallenge/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewPostgresRepository(gdb), mock
}

var userColumns = []string{"id", "name", "age", "gender", "coins", "number_of_pizza_eaten", "created_at", "updated_at"}

func TestPostgresRepository_ListUsers(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "users" ORDER BY name ASC,id ASC`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Alice", 20, "female", 100, 2, now, now).
			AddRow(2, "Bob", 30, "male", 40, 0, now, now))

	users, err := repo.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, 2, users[0].NumberOfPizzaEaten)
	assert.Equal(t, 40, users[1].Coins)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetUser(t *testing.T) {
	testErr := errors.New("test-err")

	tests := []struct {
		name       string
		mockExpect func(sqlmock.Sqlmock)
		check      func(*testing.T, error)
	}{
		{
			name: "NotFound",
			mockExpect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
					WillReturnRows(sqlmock.NewRows(userColumns))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, apperr.ErrUserNotFound)
			},
		},
		{
			name: "ErrInternal",
			mockExpect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
					WillReturnError(testErr)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, testErr)
				assert.Contains(t, err.Error(), "repo: GetUser")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.mockExpect(mock)

			user, err := repo.GetUser(context.Background(), 7)
			assert.Nil(t, user)
			tt.check(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_DeleteUserMissing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM "users" WHERE id = \$1`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteUser(context.Background(), 9)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DebitCoins(t *testing.T) {
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "users" SET "coins"=coins - \$1,"updated_at"=\$2 WHERE id = \$3 AND coins >= \$4`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "Alice", 20, "female", 60, 0, now, now))

		user, err := repo.DebitCoins(context.Background(), 1, 40)
		require.NoError(t, err)
		assert.Equal(t, 60, user.Coins)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientCoins", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "users" SET "coins"=coins - \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "Alice", 20, "female", 10, 0, now, now))

		user, err := repo.DebitCoins(context.Background(), 1, 40)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, apperr.ErrInsufficientCoins)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "users" SET "coins"=coins - \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := repo.DebitCoins(context.Background(), 1, 40)
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		_, err := repo.DebitCoins(context.Background(), 1, -40)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_MarkPurchaseEaten(t *testing.T) {
	purchaseColumns := []string{"id", "user_id", "slice_id", "slice_name", "purchased_at", "eaten_at"}
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "user_slices" SET "eaten_at"=\$1 WHERE id = \$2 AND eaten_at IS NULL`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.MarkPurchaseEaten(context.Background(), 3, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyEaten", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "user_slices" SET "eaten_at"=\$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "user_slices" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(purchaseColumns).AddRow(3, 1, 1, "Margherita", now, now))

		err := repo.MarkPurchaseEaten(context.Background(), 3, now)
		assert.ErrorIs(t, err, apperr.ErrAlreadyEaten)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "user_slices" SET "eaten_at"=\$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "user_slices" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(purchaseColumns))

		err := repo.MarkPurchaseEaten(context.Background(), 3, now)
		assert.ErrorIs(t, err, apperr.ErrPurchaseNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_ListSlicesWrapsErrors(t *testing.T) {
	repo, mock := newMockRepository(t)
	testErr := errors.New("connection reset")

	mock.ExpectQuery(`SELECT \* FROM "pizza_slices" ORDER BY price ASC,name ASC`).
		WillReturnError(testErr)

	_, err := repo.ListSlices(context.Background())
	assert.ErrorIs(t, err, testErr)
	assert.Contains(t, err.Error(), "repo: ListSlices")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_EmptyBatchesSkipTheDatabase(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.UpsertSlices(context.Background(), nil))
	require.NoError(t, repo.InsertPurchases(context.Background(), nil))
	slices, err := repo.GetSlicesByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, slices)
	assert.NoError(t, mock.ExpectationsWereMet())
}
