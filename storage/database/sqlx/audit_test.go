package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
)

func setupAuditRepo(t *testing.T) (*auditRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuditRepository(db), mock
}

func TestAuditRepository_Record(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	entry := audit.Entry{
		TenantID:       "t1",
		AdminUserID:    "admin",
		AffectedUserID: "u1",
		ActionType:     audit.ActionRoleChange,
		Description:    "Role permissions updated",
		PreviousValue:  "user",
		NewValue:       "grade_admin",
		Timestamp:      time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), entry.TenantID, entry.AdminUserID, entry.AffectedUserID,
			entry.ActionType, entry.Description, entry.PreviousValue, entry.NewValue, entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), entry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Trail(t *testing.T) {
	cols := []string{
		"id", "tenant_id", "admin_user_id", "affected_user_id", "action_type",
		"action_description", "previous_value", "new_value", "timestamp",
		"admin_name", "user_name",
	}
	now := time.Now().UTC()

	t.Run("unfiltered, newest first", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectQuery(`(?s)SELECT al\.id.+FROM audit_logs al.+WHERE al\.tenant_id = \$1.+ORDER BY al\.timestamp DESC.+LIMIT \$2`).
			WithArgs("t1", audit.TrailLimit).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("e2", "t1", "admin", "u1", audit.ActionGradeUpdate, "Grade for Amharic (Midterm)", "85", "90", now, "Admin", "Jane").
				AddRow("e1", "t1", "admin", "u1", audit.ActionRoleChange, "Role permissions updated", "user", "grade_admin", now.Add(-time.Hour), "Admin", "Jane"))

		entries, err := repo.Trail(context.Background(), "t1", nil, audit.TrailLimit)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "e2", entries[0].ID)
		assert.Equal(t, "Admin", entries[0].AdminName)
		assert.Equal(t, "Jane", entries[1].UserName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filtered by action type", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectQuery(`(?s)SELECT al\.id.+AND al\.action_type = ANY\(\$2\).+LIMIT \$3`).
			WithArgs("t1", sqlmock.AnyArg(), audit.TrailLimit).
			WillReturnRows(sqlmock.NewRows(cols))

		entries, err := repo.Trail(context.Background(), "t1", []string{audit.ActionRoleChange}, audit.TrailLimit)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditRepository_MarkChangeReviewed(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectExec(`UPDATE change_logs SET is_reviewed = true WHERE id = \$1`).
			WithArgs("c1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkChangeReviewed(context.Background(), "c1"))
	})

	t.Run("missing change maps to ErrNotFound", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectExec(`UPDATE change_logs SET is_reviewed`).
			WithArgs("nope").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.Equal(t, audit.ErrNotFound, repo.MarkChangeReviewed(context.Background(), "nope"))
	})
}

func TestAuditRepository_QueryChanges(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT id, user_id, changed_by_user_id.+WHERE user_id = \$1 AND NOT is_reviewed`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "changed_by_user_id", "field_name", "old_value", "new_value", "is_reviewed", "created_at"}).
			AddRow("c1", "u1", "u1", "phone_number", "0911", "0922", false, now))

	changes, err := repo.QueryChanges(context.Background(), "u1", true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "phone_number", changes[0].FieldName)
	assert.False(t, changes[0].IsReviewed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
