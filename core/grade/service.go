package grade

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

var ErrNotFound = errors.New("assessment not found")

type (
	Repository interface {
		// GetScoresForUpdate reads the student's current scores for the
		// year keyed by assessment id, locking the rows for the rest of
		// the transaction.
		GetScoresForUpdate(ctx context.Context, tenantID, studentID, academicYear string, exec ...core.DBExecutor) (map[string]float64, error)
		UpsertScore(ctx context.Context, score Score, exec ...core.DBExecutor) error
		GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (Assessment, error)
		QueryScores(ctx context.Context, tenantID, studentID, academicYear string, exec ...core.DBExecutor) ([]Score, error)
	}

	Service interface {
		// SaveScores applies a score sheet as one audited transaction.
		// Scores are compared as strings so a missing previous value can
		// degrade to the Not Recorded sentinel. Entries with a nil score
		// are skipped.
		SaveScores(ctx context.Context, actor user.Actor, sheet ScoreSheet) error
		Query(ctx context.Context, tenantID, studentID, academicYear string) ([]Score, error)
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

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func (svc *service) SaveScores(ctx context.Context, actor user.Actor, sheet ScoreSheet) error {
	now := time.Now().UTC()

	return core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		existing, err := svc.repo.GetScoresForUpdate(ctx, actor.TenantID, sheet.StudentID, sheet.AcademicYear, tx)
		if err != nil {
			return err
		}

		for _, entry := range sheet.Scores {
			if entry.Score == nil {
				continue
			}
			proposed := formatScore(*entry.Score)

			previous := audit.NotRecorded
			if val, ok := existing[entry.AssessmentID]; ok {
				previous = formatScore(val)
			}

			if audit.Changed(previous, proposed) {
				description := fmt.Sprintf("Grade for assessment ID %s", entry.AssessmentID)
				if info, aerr := svc.repo.GetAssessment(ctx, entry.AssessmentID, tx); aerr == nil {
					description = fmt.Sprintf("Grade for %s (%s)", info.CourseName, info.AssessmentName)
				}
				auditEntry := audit.Entry{
					TenantID:       actor.TenantID,
					AdminUserID:    actor.ID,
					AffectedUserID: sheet.StudentID,
					ActionType:     audit.ActionGradeUpdate,
					Description:    description,
					PreviousValue:  previous,
					NewValue:       proposed,
				}
				if err = svc.auditSvc.Record(ctx, auditEntry, tx); err != nil {
					return err
				}
			}

			score := Score{
				StudentID:    sheet.StudentID,
				TenantID:     actor.TenantID,
				AcademicYear: sheet.AcademicYear,
				CourseID:     entry.CourseID,
				AssessmentID: entry.AssessmentID,
				Score:        *entry.Score,
				UpdatedAt:    now,
			}
			if err = svc.repo.UpsertScore(ctx, score, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (svc *service) Query(ctx context.Context, tenantID, studentID, academicYear string) ([]Score, error) {
	return svc.repo.QueryScores(ctx, tenantID, studentID, academicYear)
}
