package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

func setupMockDB(t *testing.T) (*userRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_GetUserRoleForUpdate(t *testing.T) {
	t.Run("locks and returns the raw role string", func(t *testing.T) {
		repo, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT role FROM users WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
			WithArgs("t1", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("grade_admin,librarian"))

		role, err := repo.GetUserRoleForUpdate(context.Background(), "t1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "grade_admin,librarian", role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user maps to ErrNotFound", func(t *testing.T) {
		repo, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT role FROM users`).
			WithArgs("t1", "nope").
			WillReturnRows(sqlmock.NewRows([]string{"role"}))

		_, err := repo.GetUserRoleForUpdate(context.Background(), "t1", "nope")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestUserRepository_UpdateUserRole(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := setupMockDB(t)

		mock.ExpectExec(`UPDATE users SET role = \$1, updated_at = \$2 WHERE tenant_id = \$3 AND id = \$4`).
			WithArgs("grade_admin", sqlmock.AnyArg(), "t1", "u1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateUserRole(context.Background(), "t1", "u1", "grade_admin")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row updated maps to ErrNotFound", func(t *testing.T) {
		repo, mock := setupMockDB(t)

		mock.ExpectExec(`UPDATE users SET role`).
			WithArgs("user", sqlmock.AnyArg(), "t1", "nope").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateUserRole(context.Background(), "t1", "nope", "user")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestUserRepository_CheckUsernameUniqueness(t *testing.T) {
	t.Run("taken username", func(t *testing.T) {
		repo, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE username = \$1`).
			WithArgs("jdoe", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.CheckUsernameUniqueness(context.Background(), "jdoe", "", nil)
		assert.Equal(t, user.ErrUsernameExists, err)
	})

	t.Run("free username and email", func(t *testing.T) {
		repo, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE username = \$1`).
			WithArgs("jdoe", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE email = \$1`).
			WithArgs("jdoe@test.com", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.CheckUsernameUniqueness(context.Background(), "jdoe", "jdoe@test.com", nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetProfileForUpdate(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT user_id, full_name, phone_number, address, service_status, updated_at FROM profiles WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "full_name", "phone_number", "address", "service_status", "updated_at"}).
			AddRow("u1", "Jane Doe", "0911", "Addis", "Active", now))

	p, err := repo.GetProfileForUpdate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.FullName)
	assert.Equal(t, now, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpsertProfile(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(`(?s)INSERT INTO profiles.+ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("u1", "Jane Doe", "0911", "Addis", "Active", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertProfile(context.Background(), user.Profile{
		UserID:        "u1",
		FullName:      "Jane Doe",
		PhoneNumber:   "0911",
		Address:       "Addis",
		ServiceStatus: "Active",
		UpdatedAt:     time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
