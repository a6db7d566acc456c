package grade

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// ScoreEntry is one proposed assessment score for a student.
type ScoreEntry struct {
	CourseID     string   `json:"course_id" validate:"required"`
	AssessmentID string   `json:"assessment_id" validate:"required"`
	Score        *float64 `json:"score"`
}

// ScoreSheet is a save request for one student's scores in one academic year.
type ScoreSheet struct {
	StudentID    string       `json:"student_id" validate:"required"`
	AcademicYear string       `json:"academic_year" validate:"required"`
	Scores       []ScoreEntry `json:"scores" validate:"required,min=1,dive"`
}

func (ss *ScoreSheet) Validate(validate *validator.Validate) error {
	return validate.Struct(ss)
}

// Score is a persisted assessment score row.
type Score struct {
	StudentID    string    `json:"student_id"`
	TenantID     string    `json:"tenant_id"`
	AcademicYear string    `json:"academic_year"`
	CourseID     string    `json:"course_id"`
	AssessmentID string    `json:"assessment_id"`
	Score        float64   `json:"score"`
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Assessment names a gradable unit within a course, for audit descriptions.
type Assessment struct {
	ID             string `json:"id"`
	CourseName     string `json:"course_name"`
	AssessmentName string `json:"assessment_name"`
}
