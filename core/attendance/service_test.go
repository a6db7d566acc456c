package attendance

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type fakeRepo struct {
	Repository

	statuses map[string]string
	readErr  error

	upserts    []Row
	upsertErrs map[string]error // student id -> error
}

func (r *fakeRepo) GetStatusesForUpdate(ctx context.Context, tenantID, date, session string, studentIDs []string, exec ...core.DBExecutor) (map[string]string, error) {
	return r.statuses, r.readErr
}

func (r *fakeRepo) UpsertRow(ctx context.Context, row Row, exec ...core.DBExecutor) error {
	if err, ok := r.upsertErrs[row.StudentID]; ok {
		return err
	}
	r.upserts = append(r.upserts, row)
	return nil
}

type fakeAuditRepo struct {
	entries []audit.Entry
}

func (r *fakeAuditRepo) Record(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) Trail(ctx context.Context, tenantID string, actionTypes []string, limit int, exec ...core.DBExecutor) ([]audit.TrailEntry, error) {
	return nil, nil
}

func (r *fakeAuditRepo) RecordChange(ctx context.Context, change audit.ChangeLog, exec ...core.DBExecutor) error {
	return nil
}

func (r *fakeAuditRepo) QueryChanges(ctx context.Context, userID string, unreviewedOnly bool, exec ...core.DBExecutor) ([]audit.ChangeLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) MarkChangeReviewed(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return nil
}

func setup(t *testing.T, repo *fakeRepo) (Service, *fakeAuditRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	auditRepo := &fakeAuditRepo{}
	svc := NewService(db, repo, audit.NewService(auditRepo))
	return svc, auditRepo, mock
}

var actor = user.Actor{ID: "admin", TenantID: "t1", Roles: user.NewRoles(user.RoleAttendanceAdmin)}

func TestService_SaveSheet_auditsOnChangeOnly(t *testing.T) {
	repo := &fakeRepo{statuses: map[string]string{"s1": StatusPresent}}
	svc, auditRepo, mock := setup(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	t.Run("unchanged status writes no audit entry", func(t *testing.T) {
		sheet := Sheet{Date: "2026-03-02", Session: "morning", Records: []Record{
			{StudentID: "s1", Status: StatusPresent},
		}}
		require.NoError(t, svc.SaveSheet(context.Background(), actor, sheet))

		assert.Empty(t, auditRepo.entries)
		assert.Len(t, repo.upserts, 1, "the row write is unconditional")
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	t.Run("changed status writes exactly one entry", func(t *testing.T) {
		repo.upserts = nil
		sheet := Sheet{Date: "2026-03-02", Session: "morning", Records: []Record{
			{StudentID: "s1", Status: StatusAbsent},
		}}
		require.NoError(t, svc.SaveSheet(context.Background(), actor, sheet))

		require.Len(t, auditRepo.entries, 1)
		entry := auditRepo.entries[0]
		assert.Equal(t, audit.ActionAttendanceUpdate, entry.ActionType)
		assert.Equal(t, StatusPresent, entry.PreviousValue)
		assert.Equal(t, StatusAbsent, entry.NewValue)
		assert.Equal(t, "s1", entry.AffectedUserID)
		assert.Equal(t, "Attendance for 2026-03-02", entry.Description)
		assert.Len(t, repo.upserts, 1)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SaveSheet_missingPreviousIsNotRecorded(t *testing.T) {
	repo := &fakeRepo{statuses: map[string]string{}}
	svc, auditRepo, mock := setup(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	sheet := Sheet{Date: "2026-03-02", Session: "morning", Records: []Record{
		{StudentID: "s1", Status: StatusPresent},
	}}
	require.NoError(t, svc.SaveSheet(context.Background(), actor, sheet))

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, audit.NotRecorded, auditRepo.entries[0].PreviousValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SaveSheet_batch(t *testing.T) {
	// three students, only s2's status changes
	statuses := map[string]string{
		"s1": StatusPresent,
		"s2": StatusLate,
		"s3": StatusPresent,
	}
	sheet := Sheet{Date: "2026-03-02", Session: "morning", Records: []Record{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s2", Status: StatusPresent},
		{StudentID: "s3", Status: StatusPresent},
	}}

	t.Run("one change yields one entry and three writes", func(t *testing.T) {
		repo := &fakeRepo{statuses: statuses}
		svc, auditRepo, mock := setup(t, repo)

		mock.ExpectBegin()
		mock.ExpectCommit()

		require.NoError(t, svc.SaveSheet(context.Background(), actor, sheet))

		require.Len(t, auditRepo.entries, 1)
		assert.Equal(t, "s2", auditRepo.entries[0].AffectedUserID)
		assert.Equal(t, StatusLate, auditRepo.entries[0].PreviousValue)
		assert.Equal(t, StatusPresent, auditRepo.entries[0].NewValue)
		assert.Len(t, repo.upserts, 3)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a failing row aborts the whole batch", func(t *testing.T) {
		repo := &fakeRepo{
			statuses:   statuses,
			upsertErrs: map[string]error{"s3": errors.New("constraint violation")},
		}
		svc, _, mock := setup(t, repo)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := svc.SaveSheet(context.Background(), actor, sheet)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "transaction must be rolled back")
	})
}

func TestService_SaveSheet_readFailureRollsBack(t *testing.T) {
	repo := &fakeRepo{readErr: errors.New("lock timeout")}
	svc, auditRepo, mock := setup(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sheet := Sheet{Date: "2026-03-02", Session: "morning", Records: []Record{
		{StudentID: "s1", Status: StatusPresent},
	}}
	err := svc.SaveSheet(context.Background(), actor, sheet)

	assert.Error(t, err)
	assert.Empty(t, auditRepo.entries)
	assert.Empty(t, repo.upserts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
