package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/grade"
)

type gradeRepository struct {
	exec core.DBExecutor
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{exec: exec}
}

func (repo gradeRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo gradeRepository) GetScoresForUpdate(ctx context.Context, tenantID, studentID, academicYear string, exec ...core.DBExecutor) (map[string]float64, error) {
	query := `
		SELECT assessment_id, score FROM student_scores
		WHERE tenant_id = $1 AND user_id = $2 AND academic_year = $3
		FOR UPDATE`
	rows, err := repo.getExec(exec).QueryContext(ctx, query, tenantID, studentID, academicYear)
	if err != nil {
		return nil, errors.Wrap(err, "locking score rows")
	}
	defer func() { _ = rows.Close() }()

	scores := make(map[string]float64)
	for rows.Next() {
		var assessmentID string
		var score float64
		if err = rows.Scan(&assessmentID, &score); err != nil {
			return nil, errors.Wrap(err, "scanning score")
		}
		scores[assessmentID] = score
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning scores")
	}
	return scores, nil
}

func (repo gradeRepository) UpsertScore(ctx context.Context, score grade.Score, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO student_scores (user_id, tenant_id, academic_year, course_id, assessment_id, score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, academic_year, assessment_id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		score.StudentID, score.TenantID, score.AcademicYear, score.CourseID,
		score.AssessmentID, score.Score, score.UpdatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "upserting score")
	}
	return nil
}

func (repo gradeRepository) GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Assessment, error) {
	query := `
		SELECT a.id, c.course_name, a.assessment_name
		FROM assessments a
		JOIN courses c ON c.id = a.course_id
		WHERE a.id = $1`
	var a grade.Assessment
	err := repo.getExec(exec).QueryRowContext(ctx, query, id).Scan(&a.ID, &a.CourseName, &a.AssessmentName)
	if err != nil {
		if err == sql.ErrNoRows {
			return grade.Assessment{}, grade.ErrNotFound
		}
		return grade.Assessment{}, errors.Wrap(err, "querying assessment")
	}
	return a, nil
}

type dbScore struct {
	StudentID    string    `db:"user_id"`
	TenantID     string    `db:"tenant_id"`
	AcademicYear string    `db:"academic_year"`
	CourseID     string    `db:"course_id"`
	AssessmentID string    `db:"assessment_id"`
	Score        float64   `db:"score"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (repo gradeRepository) QueryScores(ctx context.Context, tenantID, studentID, academicYear string, exec ...core.DBExecutor) ([]grade.Score, error) {
	query := `
		SELECT user_id, tenant_id, academic_year, course_id, assessment_id, score, updated_at
		FROM student_scores
		WHERE tenant_id = $1 AND user_id = $2 AND academic_year = $3
		ORDER BY assessment_id`
	rows, err := repo.getExec(exec).QueryContext(ctx, query, tenantID, studentID, academicYear)
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	defer func() { _ = rows.Close() }()

	var dbScores []dbScore
	if err = sqlx.StructScan(rows, &dbScores); err != nil {
		return nil, errors.Wrap(err, "scanning scores")
	}

	out := make([]grade.Score, 0, len(dbScores))
	for _, s := range dbScores {
		out = append(out, grade.Score{
			StudentID:    s.StudentID,
			TenantID:     s.TenantID,
			AcademicYear: s.AcademicYear,
			CourseID:     s.CourseID,
			AssessmentID: s.AssessmentID,
			Score:        s.Score,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return out, nil
}
