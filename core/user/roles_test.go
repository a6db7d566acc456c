package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoles(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty string", raw: "", want: []string{RoleUser}},
		{name: "whitespace only", raw: "  , ,  ", want: []string{RoleUser}},
		{name: "single tag", raw: "librarian", want: []string{RoleLibrarian}},
		{name: "multiple tags", raw: "grade_admin,attendance_admin", want: []string{RoleAttendanceAdmin, RoleGradeAdmin}},
		{name: "trims and drops empties", raw: " grade_admin , ,librarian ", want: []string{RoleGradeAdmin, RoleLibrarian}},
		{name: "dedupes", raw: "librarian,librarian", want: []string{RoleLibrarian}},
		{name: "redundant user tag dropped", raw: "grade_admin,user", want: []string{RoleGradeAdmin}},
		{name: "bare user kept", raw: "user", want: []string{RoleUser}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRoles(tt.raw).Tags())
		})
	}
}

func TestRoles_AddRemove(t *testing.T) {
	roles := NewRoles()
	assert.Equal(t, []string{RoleUser}, roles.Tags())

	roles.Add(RoleGradeAdmin)
	assert.Equal(t, []string{RoleGradeAdmin}, roles.Tags(), "user tag dropped once a specific role exists")

	roles.Add(RoleAttendanceAdmin)
	assert.Equal(t, []string{RoleAttendanceAdmin, RoleGradeAdmin}, roles.Tags())

	// re-adding a present tag is an idempotent no-op
	roles.Add(RoleGradeAdmin)
	assert.Equal(t, []string{RoleAttendanceAdmin, RoleGradeAdmin}, roles.Tags())

	roles.Remove(RoleAttendanceAdmin)
	assert.Equal(t, []string{RoleGradeAdmin}, roles.Tags())

	// removing the last specific tag restores {user}
	roles.Remove(RoleGradeAdmin)
	assert.Equal(t, []string{RoleUser}, roles.Tags())

	// removing an absent tag is harmless
	roles.Remove(RoleLibrarian)
	assert.Equal(t, []string{RoleUser}, roles.Tags())
}

// The set is never empty after any sequence of adds and removes, and the
// bare "user" tag never coexists with specific roles.
func TestRoles_Invariants(t *testing.T) {
	roles := NewRoles()

	ops := []struct {
		add bool
		tag string
	}{
		{true, RoleGradeAdmin}, {true, RoleLibrarian}, {false, RoleGradeAdmin},
		{false, RoleLibrarian}, {true, RoleUser}, {false, RoleUser},
		{true, RoleSuperiorAdmin}, {true, RoleAttendanceAdmin}, {false, RoleSuperiorAdmin},
		{false, RoleAttendanceAdmin}, {false, RoleUser}, {false, RoleUser},
	}
	for i, op := range ops {
		if op.add {
			roles.Add(op.tag)
		} else {
			roles.Remove(op.tag)
		}
		assert.NotEmpty(t, roles, "op %d left the set empty", i)
		if len(roles) > 1 {
			assert.False(t, roles.Has(RoleUser), "op %d kept a redundant user tag", i)
		}
	}
}

func TestRoles_RemoveOnlyTag(t *testing.T) {
	roles := NewRoles(RoleLibrarian)
	roles.Remove(RoleLibrarian)
	assert.Equal(t, "user", roles.String())
}

func TestRoles_HasAny(t *testing.T) {
	roles := NewRoles(RoleGradeAdmin, RoleLibrarian)

	assert.True(t, roles.HasAny(RoleGradeAdmin))
	assert.True(t, roles.HasAny(RoleAttendanceAdmin, RoleLibrarian))
	assert.False(t, roles.HasAny(RoleAttendanceAdmin))
	assert.False(t, roles.HasAny())

	// exact-match membership: "admin" is not a substring match for "*_admin"
	assert.False(t, roles.HasAny("admin"))
	assert.False(t, NewRoles(RoleSuperiorAdmin).HasAny("admin"))
}

func TestRoles_Predicates(t *testing.T) {
	assert.True(t, NewRoles(RoleSuperiorAdmin).IsSuperiorAdmin())
	assert.False(t, NewRoles(RoleSuperiorAdmin).IsSystemAdmin())
	assert.True(t, NewRoles(RoleSystemAdmin).IsSystemAdmin())
	assert.False(t, NewRoles(RoleUser).IsAdmin())
	assert.True(t, NewRoles(RoleLibrarian).IsAdmin())
}

func TestRoles_StringRoundTrip(t *testing.T) {
	roles := NewRoles(RoleLibrarian, RoleGradeAdmin)
	assert.True(t, roles.Equal(ParseRoles(roles.String())))
}
