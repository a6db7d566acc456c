package user

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role tags. The vocabulary is open: unknown tags round-trip through
// ParseRoles/String untouched, these are just the ones the app knows about.
const (
	RoleUser = "user"

	// tenant-scoped universal access
	RoleSuperiorAdmin = "superior_admin"
	// cross-tenant universal access
	RoleSystemAdmin = "system_admin"

	RoleAttendanceAdmin  = "attendance_admin"
	RoleGradeAdmin       = "grade_admin"
	RoleLibraryAdmin     = "library_admin"
	RoleLibrarian        = "librarian"
	RoleLearningAdmin    = "learning_admin"
	RoleDevelopmentAdmin = "development_admin"
)

var AllRoles = []string{
	RoleUser,
	RoleSuperiorAdmin,
	RoleSystemAdmin,
	RoleAttendanceAdmin,
	RoleGradeAdmin,
	RoleLibraryAdmin,
	RoleLibrarian,
	RoleLearningAdmin,
	RoleDevelopmentAdmin,
}

// Roles is a user's role set.
//
// Two invariants hold after every mutation:
//   - the set is never empty; it degrades to {user} instead
//   - when the set holds 2+ tags, the bare "user" tag is dropped
//     (specific roles imply membership)
//
// The persisted form is a comma-joined string; membership checks are
// exact-match on whole tags, never substring checks.
type Roles map[string]struct{}

// NewRoles builds a normalized role set from tags.
func NewRoles(tags ...string) Roles {
	r := make(Roles, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			r[tag] = struct{}{}
		}
	}
	r.normalize()
	return r
}

// ParseRoles parses the persisted comma-joined form. Malformed or empty
// input degrades to {user}.
func ParseRoles(raw string) Roles {
	return NewRoles(strings.Split(raw, ",")...)
}

func (r Roles) normalize() {
	if len(r) == 0 {
		r[RoleUser] = struct{}{}
		return
	}
	if len(r) > 1 {
		delete(r, RoleUser)
	}
}

// Add inserts tag into the set. Re-adding a present tag is a no-op.
func (r Roles) Add(tag string) Roles {
	if tag = strings.TrimSpace(tag); tag != "" {
		r[tag] = struct{}{}
	}
	r.normalize()
	return r
}

// Remove deletes tag from the set; removing the last tag restores {user}.
func (r Roles) Remove(tag string) Roles {
	delete(r, strings.TrimSpace(tag))
	r.normalize()
	return r
}

func (r Roles) Has(tag string) bool {
	_, ok := r[tag]
	return ok
}

// HasAny reports whether the set intersects the given tags.
func (r Roles) HasAny(tags ...string) bool {
	for _, tag := range tags {
		if r.Has(tag) {
			return true
		}
	}
	return false
}

func (r Roles) IsSuperiorAdmin() bool { return r.Has(RoleSuperiorAdmin) }
func (r Roles) IsSystemAdmin() bool   { return r.Has(RoleSystemAdmin) }

// IsAdmin reports whether the set holds any tag other than the bare "user".
func (r Roles) IsAdmin() bool {
	for tag := range r {
		if tag != RoleUser {
			return true
		}
	}
	return false
}

// Tags returns the members in lexicographic order. Order carries no
// meaning; it is stable only so serialized forms compare equal.
func (r Roles) Tags() []string {
	tags := make([]string, 0, len(r))
	for tag := range r {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// String renders the persisted comma-joined form.
func (r Roles) String() string {
	return strings.Join(r.Tags(), ",")
}

func (r Roles) Equal(other Roles) bool {
	if len(r) != len(other) {
		return false
	}
	for tag := range r {
		if !other.Has(tag) {
			return false
		}
	}
	return true
}

func (r Roles) Clone() Roles {
	clone := make(Roles, len(r))
	for tag := range r {
		clone[tag] = struct{}{}
	}
	return clone
}

func (r Roles) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Tags())
}

func (r *Roles) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*r = NewRoles(tags...)
	return nil
}
