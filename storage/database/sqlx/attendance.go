package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/attendance"
)

const dateLayout = "2006-01-02"

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo attendanceRepository) GetStatusesForUpdate(ctx context.Context, tenantID, date, session string, studentIDs []string, exec ...core.DBExecutor) (map[string]string, error) {
	query := `
		SELECT user_id, status FROM attendance
		WHERE tenant_id = $1 AND attendance_date = $2 AND session = $3 AND user_id = ANY($4)
		FOR UPDATE`
	rows, err := repo.getExec(exec).QueryContext(ctx, query, tenantID, date, session, pq.Array(studentIDs))
	if err != nil {
		return nil, errors.Wrap(err, "locking attendance rows")
	}
	defer func() { _ = rows.Close() }()

	statuses := make(map[string]string, len(studentIDs))
	for rows.Next() {
		var studentID, status string
		if err = rows.Scan(&studentID, &status); err != nil {
			return nil, errors.Wrap(err, "scanning attendance status")
		}
		statuses[studentID] = status
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning attendance statuses")
	}
	return statuses, nil
}

func (repo attendanceRepository) UpsertRow(ctx context.Context, row attendance.Row, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO attendance (user_id, tenant_id, attendance_date, session, status, attendance_type, late_time, recorded_by_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, attendance_date, session) DO UPDATE SET
			status = EXCLUDED.status,
			attendance_type = EXCLUDED.attendance_type,
			late_time = EXCLUDED.late_time,
			recorded_by_id = EXCLUDED.recorded_by_id,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		row.StudentID, row.TenantID, row.Date, row.Session, row.Status,
		row.Type, row.LateTime, row.RecordedByID, row.UpdatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "upserting attendance row")
	}
	return nil
}

type dbAttendanceRow struct {
	StudentID    string    `db:"user_id"`
	TenantID     string    `db:"tenant_id"`
	Date         time.Time `db:"attendance_date"`
	Session      string    `db:"session"`
	Status       string    `db:"status"`
	Type         string    `db:"attendance_type"`
	LateTime     string    `db:"late_time"`
	RecordedByID string    `db:"recorded_by_id"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (repo attendanceRepository) QueryRows(ctx context.Context, tenantID, date, session string, exec ...core.DBExecutor) ([]attendance.Row, error) {
	query := `
		SELECT user_id, tenant_id, attendance_date, session, status, attendance_type, late_time,
		       COALESCE(recorded_by_id::text, '') AS recorded_by_id, updated_at
		FROM attendance
		WHERE tenant_id = $1 AND attendance_date = $2 AND session = $3
		ORDER BY user_id`
	rows, err := repo.getExec(exec).QueryContext(ctx, query, tenantID, date, session)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	defer func() { _ = rows.Close() }()

	var dbRows []dbAttendanceRow
	if err = sqlx.StructScan(rows, &dbRows); err != nil {
		return nil, errors.Wrap(err, "scanning attendance")
	}

	out := make([]attendance.Row, 0, len(dbRows))
	for _, r := range dbRows {
		out = append(out, attendance.Row{
			StudentID:    r.StudentID,
			TenantID:     r.TenantID,
			Date:         r.Date.Format(dateLayout),
			Session:      r.Session,
			Status:       r.Status,
			Type:         r.Type,
			LateTime:     r.LateTime,
			RecordedByID: r.RecordedByID,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return out, nil
}
