package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
)

// fakeRepo implements Repository; only what SetRole and UpdateProfile touch.
type fakeRepo struct {
	Repository

	roleRaw      string
	roleReadErr  error
	roleWrites   []string
	roleWriteErr error

	profile    Profile
	profileErr error
	upserted   []Profile
	upsertErr  error
}

func (r *fakeRepo) GetUserRoleForUpdate(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (string, error) {
	return r.roleRaw, r.roleReadErr
}

func (r *fakeRepo) UpdateUserRole(ctx context.Context, tenantID, id, role string, exec ...core.DBExecutor) error {
	if r.roleWriteErr != nil {
		return r.roleWriteErr
	}
	r.roleWrites = append(r.roleWrites, role)
	return nil
}

func (r *fakeRepo) GetProfileForUpdate(ctx context.Context, userID string, exec ...core.DBExecutor) (Profile, error) {
	return r.profile, r.profileErr
}

func (r *fakeRepo) UpsertProfile(ctx context.Context, profile Profile, exec ...core.DBExecutor) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserted = append(r.upserted, profile)
	return nil
}

// fakeAuditRepo captures records; satisfies audit.Repository.
type fakeAuditRepo struct {
	entries   []audit.Entry
	changes   []audit.ChangeLog
	recordErr error
}

func (r *fakeAuditRepo) Record(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) Trail(ctx context.Context, tenantID string, actionTypes []string, limit int, exec ...core.DBExecutor) ([]audit.TrailEntry, error) {
	return nil, nil
}

func (r *fakeAuditRepo) RecordChange(ctx context.Context, change audit.ChangeLog, exec ...core.DBExecutor) error {
	r.changes = append(r.changes, change)
	return nil
}

func (r *fakeAuditRepo) QueryChanges(ctx context.Context, userID string, unreviewedOnly bool, exec ...core.DBExecutor) ([]audit.ChangeLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) MarkChangeReviewed(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return nil
}

func setupRoleSvc(t *testing.T, repo *fakeRepo, auditRepo *fakeAuditRepo) (Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	conf := &core.Config{SecretKey: "secret", PasswordResetTimeoutDelta: 3 * 24 * time.Hour}
	svc := NewService(db, repo, audit.NewService(auditRepo), nil, conf)
	return svc, mock
}

func TestService_SetRole_selfChangeForbidden(t *testing.T) {
	repo := &fakeRepo{roleRaw: "user"}
	auditRepo := &fakeAuditRepo{}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	grant := true
	_, err := svc.SetRole(context.Background(), Actor{ID: "u1", TenantID: "t1"}, "u1", RoleUpdate{Role: RoleSuperiorAdmin, Grant: &grant})

	assert.Equal(t, ErrSelfRoleChange, errors.Cause(err))
	assert.Empty(t, repo.roleWrites, "no write may happen on a rejected call")
	assert.Empty(t, auditRepo.entries)
	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction may begin on a rejected call")
}

func TestService_SetRole_grant(t *testing.T) {
	repo := &fakeRepo{roleRaw: "user"}
	auditRepo := &fakeAuditRepo{}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	grant := true
	roles, err := svc.SetRole(context.Background(), Actor{ID: "admin", TenantID: "t1"}, "u1", RoleUpdate{Role: RoleGradeAdmin, Grant: &grant})
	require.NoError(t, err)

	assert.Equal(t, []string{RoleGradeAdmin}, roles.Tags())
	assert.Equal(t, []string{"grade_admin"}, repo.roleWrites)

	require.Len(t, auditRepo.entries, 1)
	entry := auditRepo.entries[0]
	assert.Equal(t, audit.ActionRoleChange, entry.ActionType)
	assert.Equal(t, "user", entry.PreviousValue)
	assert.Equal(t, "grade_admin", entry.NewValue)
	assert.Equal(t, "admin", entry.AdminUserID)
	assert.Equal(t, "u1", entry.AffectedUserID)
	assert.Equal(t, "t1", entry.TenantID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRole_revokeLastTag(t *testing.T) {
	repo := &fakeRepo{roleRaw: "librarian"}
	auditRepo := &fakeAuditRepo{}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	grant := false
	roles, err := svc.SetRole(context.Background(), Actor{ID: "admin", TenantID: "t1"}, "u1", RoleUpdate{Role: RoleLibrarian, Grant: &grant})
	require.NoError(t, err)

	// the set degrades to {user}, never to empty
	assert.Equal(t, "user", roles.String())
	assert.Equal(t, []string{"user"}, repo.roleWrites)
	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, "librarian", auditRepo.entries[0].PreviousValue)
	assert.Equal(t, "user", auditRepo.entries[0].NewValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRole_idempotentGrant(t *testing.T) {
	repo := &fakeRepo{roleRaw: "grade_admin"}
	auditRepo := &fakeAuditRepo{}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	grant := true
	roles, err := svc.SetRole(context.Background(), Actor{ID: "admin", TenantID: "t1"}, "u1", RoleUpdate{Role: RoleGradeAdmin, Grant: &grant})
	require.NoError(t, err)

	assert.Equal(t, []string{RoleGradeAdmin}, roles.Tags())
	assert.Empty(t, repo.roleWrites, "no-op grant writes nothing")
	assert.Empty(t, auditRepo.entries, "no-op grant is not audited")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRole_repairsMalformedRoleString(t *testing.T) {
	// a redundant bare user tag persisted alongside a specific role gets
	// normalized away on the next write, without an audit entry
	repo := &fakeRepo{roleRaw: "grade_admin,user"}
	auditRepo := &fakeAuditRepo{}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	grant := true
	roles, err := svc.SetRole(context.Background(), Actor{ID: "admin", TenantID: "t1"}, "u1", RoleUpdate{Role: RoleGradeAdmin, Grant: &grant})
	require.NoError(t, err)

	assert.Equal(t, []string{RoleGradeAdmin}, roles.Tags())
	assert.Equal(t, []string{"grade_admin"}, repo.roleWrites)
	assert.Empty(t, auditRepo.entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRole_auditFailureRollsBack(t *testing.T) {
	repo := &fakeRepo{roleRaw: "user"}
	auditRepo := &fakeAuditRepo{recordErr: errors.New("insert failed")}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	grant := true
	_, err := svc.SetRole(context.Background(), Actor{ID: "admin", TenantID: "t1"}, "u1", RoleUpdate{Role: RoleGradeAdmin, Grant: &grant})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "transaction must be rolled back")
}

func TestService_UpdateProfile_logsChangedFieldsOnly(t *testing.T) {
	repo := &fakeRepo{profile: Profile{
		UserID:      "u1",
		FullName:    "Abebe K",
		PhoneNumber: "0911000000",
	}}
	auditRepo := &fakeAuditRepo{}
	svc, mock := setupRoleSvc(t, repo, auditRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.UpdateProfile(context.Background(), "u1", "u1", UpdateProfile{
		FullName:    "Abebe Kebede", // changed
		PhoneNumber: "0911000000",   // unchanged
		Address:     "Addis Ababa",  // changed (was empty)
	})
	require.NoError(t, err)

	require.Len(t, repo.upserted, 1, "the primary write is unconditional")

	require.Len(t, auditRepo.changes, 2)
	byField := map[string]audit.ChangeLog{}
	for _, c := range auditRepo.changes {
		byField[c.FieldName] = c
	}
	assert.Equal(t, "Abebe K", byField["full_name"].OldValue)
	assert.Equal(t, "Abebe Kebede", byField["full_name"].NewValue)
	assert.Equal(t, "", byField["address"].OldValue)
	assert.Equal(t, "Addis Ababa", byField["address"].NewValue)
	assert.False(t, byField["full_name"].IsReviewed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
