package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
)

type auditRepository struct {
	exec core.DBExecutor
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(exec core.DBExecutor) *auditRepository {
	return &auditRepository{exec: exec}
}

func (repo auditRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo auditRepository) Record(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO audit_logs (id, tenant_id, admin_user_id, affected_user_id, action_type, action_description, previous_value, new_value, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		uuid.New().String(), entry.TenantID, entry.AdminUserID, entry.AffectedUserID,
		entry.ActionType, entry.Description, entry.PreviousValue, entry.NewValue, entry.Timestamp.UTC())
	if err != nil {
		return errors.Wrap(err, "inserting audit entry")
	}
	return nil
}

type dbTrailEntry struct {
	ID             string    `db:"id"`
	TenantID       string    `db:"tenant_id"`
	AdminUserID    string    `db:"admin_user_id"`
	AffectedUserID string    `db:"affected_user_id"`
	ActionType     string    `db:"action_type"`
	Description    string    `db:"action_description"`
	PreviousValue  string    `db:"previous_value"`
	NewValue       string    `db:"new_value"`
	Timestamp      time.Time `db:"timestamp"`
	AdminName      string    `db:"admin_name"`
	UserName       string    `db:"user_name"`
}

func (repo auditRepository) Trail(ctx context.Context, tenantID string, actionTypes []string, limit int, exec ...core.DBExecutor) ([]audit.TrailEntry, error) {
	where := []string{"al.tenant_id = $1"}
	args := []interface{}{tenantID}
	if len(actionTypes) > 0 {
		where = append(where, "al.action_type = ANY($2)")
		args = append(args, pq.Array(actionTypes))
	}
	args = append(args, limit)

	query := `
		SELECT al.id, al.tenant_id, al.admin_user_id, al.affected_user_id,
		       al.action_type, al.action_description, al.previous_value, al.new_value, al.timestamp,
		       COALESCE(admin.name, '') AS admin_name,
		       COALESCE(affected.name, '') AS user_name
		FROM audit_logs al
		LEFT JOIN users admin ON admin.id = al.admin_user_id
		LEFT JOIN users affected ON affected.id = al.affected_user_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY al.timestamp DESC
		LIMIT $` + strconv.Itoa(len(args))

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying audit trail")
	}
	defer func() { _ = rows.Close() }()

	var dbEntries []dbTrailEntry
	if err = sqlx.StructScan(rows, &dbEntries); err != nil {
		return nil, errors.Wrap(err, "scanning audit trail")
	}

	entries := make([]audit.TrailEntry, 0, len(dbEntries))
	for _, e := range dbEntries {
		entries = append(entries, audit.TrailEntry{
			Entry: audit.Entry{
				ID:             e.ID,
				TenantID:       e.TenantID,
				AdminUserID:    e.AdminUserID,
				AffectedUserID: e.AffectedUserID,
				ActionType:     e.ActionType,
				Description:    e.Description,
				PreviousValue:  e.PreviousValue,
				NewValue:       e.NewValue,
				Timestamp:      e.Timestamp,
			},
			AdminName: e.AdminName,
			UserName:  e.UserName,
		})
	}
	return entries, nil
}

func (repo auditRepository) RecordChange(ctx context.Context, change audit.ChangeLog, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO change_logs (id, user_id, changed_by_user_id, field_name, old_value, new_value, is_reviewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		uuid.New().String(), change.UserID, change.ChangedByUserID,
		change.FieldName, change.OldValue, change.NewValue, change.CreatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "inserting change log")
	}
	return nil
}

func (repo auditRepository) QueryChanges(ctx context.Context, userID string, unreviewedOnly bool, exec ...core.DBExecutor) ([]audit.ChangeLog, error) {
	query := `
		SELECT id, user_id, changed_by_user_id, field_name, old_value, new_value, is_reviewed, created_at
		FROM change_logs
		WHERE user_id = $1`
	if unreviewedOnly {
		query += ` AND NOT is_reviewed`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := repo.getExec(exec).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying change logs")
	}
	defer func() { _ = rows.Close() }()

	var changes []audit.ChangeLog
	for rows.Next() {
		var c audit.ChangeLog
		err = rows.Scan(&c.ID, &c.UserID, &c.ChangedByUserID, &c.FieldName,
			&c.OldValue, &c.NewValue, &c.IsReviewed, &c.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scanning change log")
		}
		changes = append(changes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning change logs")
	}
	return changes, nil
}

func (repo auditRepository) MarkChangeReviewed(ctx context.Context, id string, exec ...core.DBExecutor) error {
	query := `UPDATE change_logs SET is_reviewed = true WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "marking change reviewed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return audit.ErrNotFound
	}
	return nil
}
