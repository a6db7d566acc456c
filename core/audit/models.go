package audit

import "time"

// Action types recorded in the audit trail.
const (
	ActionRoleChange       = "ROLE_CHANGE"
	ActionAttendanceUpdate = "ATTENDANCE_UPDATE"
	ActionGradeUpdate      = "GRADE_UPDATE"
	ActionStatusChange     = "STATUS_CHANGE"
)

// NotRecorded is the sentinel previous-value for fields that had no
// prior value. Diffs are computed on strings, never on nulls.
const NotRecorded = "Not Recorded"

// Entry is one append-only audit record. Entries are born inside a
// committed transaction and never updated or deleted by the app.
type Entry struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	AdminUserID    string    `json:"admin_user_id"`
	AffectedUserID string    `json:"affected_user_id"`
	ActionType     string    `json:"action_type"`
	Description    string    `json:"action_description"`
	PreviousValue  string    `json:"previous_value"`
	NewValue       string    `json:"new_value"`
	Timestamp      time.Time `json:"timestamp"` // UTC
}

// TrailEntry is an Entry joined with the display names of the acting and
// affected users, for the report endpoint.
type TrailEntry struct {
	Entry
	AdminName string `json:"admin_name"`
	UserName  string `json:"user_name"`
}

// ChangeLog is a per-profile-field change record awaiting admin review.
// Created on self-service profile edits; the reviewed flag flips once.
type ChangeLog struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ChangedByUserID string    `json:"changed_by_user_id"`
	FieldName       string    `json:"field_name"`
	OldValue        string    `json:"old_value"`
	NewValue        string    `json:"new_value"`
	IsReviewed      bool      `json:"is_reviewed"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

// Changed reports whether a field transition warrants an audit entry.
func Changed(previous, proposed string) bool {
	return previous != proposed
}
