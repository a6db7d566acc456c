package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
)

// Attendance statuses.
const (
	StatusPresent    = "Present"
	StatusAbsent     = "Absent"
	StatusLate       = "Late"
	StatusPermission = "Permission"
)

// Record is one student's attendance for one date and session.
type Record struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=Present Absent Late Permission"`
	Type      string `json:"attendance_type"`
	LateTime  string `json:"late_time"`
}

// Sheet is a roster save request: all records share one date and session
// and are committed in a single transaction, all or nothing.
type Sheet struct {
	Date    string   `json:"date" validate:"required,datetime=2006-01-02"`
	Session string   `json:"session" validate:"required"`
	Records []Record `json:"records" validate:"required,min=1,dive"`
}

func (s *Sheet) Validate(validate *validator.Validate) error {
	s.Session = core.CleanString(s.Session)
	return validate.Struct(s)
}

// Row is a persisted attendance row.
type Row struct {
	StudentID    string    `json:"student_id"`
	TenantID     string    `json:"tenant_id"`
	Date         string    `json:"date"`
	Session      string    `json:"session"`
	Status       string    `json:"status"`
	Type         string    `json:"attendance_type"`
	LateTime     string    `json:"late_time"`
	RecordedByID string    `json:"recorded_by_id"`
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}
