package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type (
	Repository interface {
		// GetStatusesForUpdate reads the current statuses for the given
		// students on one date+session, locking the rows for the rest of
		// the transaction. Students with no row are absent from the map.
		GetStatusesForUpdate(ctx context.Context, tenantID, date, session string, studentIDs []string, exec ...core.DBExecutor) (map[string]string, error)
		// UpsertRow inserts or updates one attendance row; the write is
		// unconditional even when the status did not change.
		UpsertRow(ctx context.Context, row Row, exec ...core.DBExecutor) error
		QueryRows(ctx context.Context, tenantID, date, session string, exec ...core.DBExecutor) ([]Row, error)
	}

	Service interface {
		// SaveSheet applies a roster save as one audited transaction:
		// one audit entry per actually-changed status, every row written,
		// all rolled back together on any failure.
		SaveSheet(ctx context.Context, actor user.Actor, sheet Sheet) error
		Query(ctx context.Context, tenantID, date, session string) ([]Row, error)
	}

	service struct {
		db       core.DB
		repo     Repository
		auditSvc audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, auditSvc audit.Service) Service {
	return &service{db: db, repo: repo, auditSvc: auditSvc}
}

func (svc *service) SaveSheet(ctx context.Context, actor user.Actor, sheet Sheet) error {
	studentIDs := make([]string, 0, len(sheet.Records))
	for _, rec := range sheet.Records {
		studentIDs = append(studentIDs, rec.StudentID)
	}
	now := time.Now().UTC()

	return core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		existing, err := svc.repo.GetStatusesForUpdate(ctx, actor.TenantID, sheet.Date, sheet.Session, studentIDs, tx)
		if err != nil {
			return err
		}

		for _, rec := range sheet.Records {
			previous, ok := existing[rec.StudentID]
			if !ok {
				previous = audit.NotRecorded
			}

			if audit.Changed(previous, rec.Status) {
				entry := audit.Entry{
					TenantID:       actor.TenantID,
					AdminUserID:    actor.ID,
					AffectedUserID: rec.StudentID,
					ActionType:     audit.ActionAttendanceUpdate,
					Description:    fmt.Sprintf("Attendance for %s", sheet.Date),
					PreviousValue:  previous,
					NewValue:       rec.Status,
				}
				if err = svc.auditSvc.Record(ctx, entry, tx); err != nil {
					return err
				}
			}

			row := Row{
				StudentID:    rec.StudentID,
				TenantID:     actor.TenantID,
				Date:         sheet.Date,
				Session:      sheet.Session,
				Status:       rec.Status,
				Type:         rec.Type,
				LateTime:     rec.LateTime,
				RecordedByID: actor.ID,
				UpdatedAt:    now,
			}
			if err = svc.repo.UpsertRow(ctx, row, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (svc *service) Query(ctx context.Context, tenantID, date, session string) ([]Row, error) {
	return svc.repo.QueryRows(ctx, tenantID, date, session)
}
