package grade

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

	scores      map[string]float64
	assessments map[string]Assessment

	upserts   []Score
	upsertErr error
}

func (r *fakeRepo) GetScoresForUpdate(ctx context.Context, tenantID, studentID, academicYear string, exec ...core.DBExecutor) (map[string]float64, error) {
	return r.scores, nil
}

func (r *fakeRepo) UpsertScore(ctx context.Context, score Score, exec ...core.DBExecutor) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts = append(r.upserts, score)
	return nil
}

func (r *fakeRepo) GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (Assessment, error) {
	if a, ok := r.assessments[id]; ok {
		return a, nil
	}
	return Assessment{}, ErrNotFound
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

var actor = user.Actor{ID: "admin", TenantID: "t1", Roles: user.NewRoles(user.RoleGradeAdmin)}

func fptr(f float64) *float64 { return &f }

func setup(t *testing.T, repo *fakeRepo) (Service, *fakeAuditRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	auditRepo := &fakeAuditRepo{}
	svc := NewService(db, repo, audit.NewService(auditRepo))
	return svc, auditRepo, mock
}

func TestService_SaveScores(t *testing.T) {
	repo := &fakeRepo{
		scores: map[string]float64{"a1": 85},
		assessments: map[string]Assessment{
			"a1": {ID: "a1", CourseName: "Amharic", AssessmentName: "Midterm"},
		},
	}
	svc, auditRepo, mock := setup(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	sheet := ScoreSheet{StudentID: "s1", AcademicYear: "2026", Scores: []ScoreEntry{
		{CourseID: "c1", AssessmentID: "a1", Score: fptr(90)}, // changed
		{CourseID: "c1", AssessmentID: "a2", Score: fptr(70)}, // new
		{CourseID: "c1", AssessmentID: "a3", Score: nil},      // skipped
	}}
	require.NoError(t, svc.SaveScores(context.Background(), actor, sheet))

	require.Len(t, auditRepo.entries, 2)
	assert.Equal(t, "85", auditRepo.entries[0].PreviousValue)
	assert.Equal(t, "90", auditRepo.entries[0].NewValue)
	assert.Equal(t, "Grade for Amharic (Midterm)", auditRepo.entries[0].Description)
	assert.Equal(t, audit.NotRecorded, auditRepo.entries[1].PreviousValue)
	assert.Equal(t, "70", auditRepo.entries[1].NewValue)
	assert.Equal(t, "Grade for assessment ID a2", auditRepo.entries[1].Description)

	assert.Len(t, repo.upserts, 2, "nil scores are skipped, the rest written")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SaveScores_unchangedScoreNotAudited(t *testing.T) {
	repo := &fakeRepo{scores: map[string]float64{"a1": 85}}
	svc, auditRepo, mock := setup(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	sheet := ScoreSheet{StudentID: "s1", AcademicYear: "2026", Scores: []ScoreEntry{
		{CourseID: "c1", AssessmentID: "a1", Score: fptr(85)},
	}}
	require.NoError(t, svc.SaveScores(context.Background(), actor, sheet))

	assert.Empty(t, auditRepo.entries)
	assert.Len(t, repo.upserts, 1, "the write is unconditional")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SaveScores_writeFailureRollsBack(t *testing.T) {
	repo := &fakeRepo{
		scores:    map[string]float64{},
		upsertErr: errors.New("constraint violation"),
	}
	svc, _, mock := setup(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sheet := ScoreSheet{StudentID: "s1", AcademicYear: "2026", Scores: []ScoreEntry{
		{CourseID: "c1", AssessmentID: "a1", Score: fptr(50)},
	}}
	err := svc.SaveScores(context.Background(), actor, sheet)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
