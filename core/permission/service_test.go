package permission

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type fakeRepo struct {
	Repository

	roleKeys map[string][]string // role tag -> screen keys
	userKeys map[string][]string // user id -> screen keys

	roleQueries []string
}

func (r *fakeRepo) GetRoleScreenKeys(ctx context.Context, roleName string, exec ...core.DBExecutor) ([]string, error) {
	r.roleQueries = append(r.roleQueries, roleName)
	return r.roleKeys[roleName], nil
}

func (r *fakeRepo) GetUserScreenKeys(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	return r.userKeys[userID], nil
}

func TestService_Resolve(t *testing.T) {
	repo := &fakeRepo{
		roleKeys: map[string][]string{
			"grade_admin": {"gradebook", "reports"},
			"librarian":   {"library"},
		},
		userKeys: map[string][]string{
			"u1": {"attendance"},
		},
	}
	svc := NewService(nil, repo)

	t.Run("role and user grants union", func(t *testing.T) {
		keys, err := svc.Resolve(context.Background(), "u1", user.NewRoles("grade_admin"))
		require.NoError(t, err)
		assert.Equal(t, []string{"attendance", "gradebook", "reports"}, keys)
	})

	t.Run("multi-tag sets resolve per tag", func(t *testing.T) {
		repo.roleQueries = nil
		keys, err := svc.Resolve(context.Background(), "u2", user.NewRoles("grade_admin", "librarian"))
		require.NoError(t, err)
		assert.Equal(t, []string{"gradebook", "library", "reports"}, keys)
		// each tag queried individually, never the joined string
		assert.ElementsMatch(t, []string{"grade_admin", "librarian"}, repo.roleQueries)
	})

	t.Run("overlapping grants collapse", func(t *testing.T) {
		repo.userKeys["u3"] = []string{"gradebook"}
		keys, err := svc.Resolve(context.Background(), "u3", user.NewRoles("grade_admin"))
		require.NoError(t, err)
		assert.Equal(t, []string{"gradebook", "reports"}, keys)
	})

	t.Run("no grants yields empty set", func(t *testing.T) {
		keys, err := svc.Resolve(context.Background(), "nobody", user.NewRoles())
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("removing a user grant removes only that key", func(t *testing.T) {
		repo.userKeys["u1"] = nil
		keys, err := svc.Resolve(context.Background(), "u1", user.NewRoles("grade_admin"))
		require.NoError(t, err)
		assert.Equal(t, []string{"gradebook", "reports"}, keys)
	})
}

func TestService_ReplaceRolePermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	deleted := false
	var inserted []string
	repo := &replaceRepo{
		onDeleteRole: func(role string) { deleted = true },
		onInsertRole: func(role string, ids []string) { inserted = ids },
	}
	svc := NewService(db, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = svc.ReplaceRolePermissions(context.Background(), RolePermissionsUpdate{
		RoleName:  "librarian",
		ScreenIDs: []string{"s1", "s2", "s1"},
	})
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"s1", "s2"}, inserted, "duplicate grants collapse")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type replaceRepo struct {
	Repository

	onDeleteRole func(role string)
	onInsertRole func(role string, ids []string)
}

func (r *replaceRepo) DeleteRoleGrants(ctx context.Context, roleName string, exec ...core.DBExecutor) error {
	r.onDeleteRole(roleName)
	return nil
}

func (r *replaceRepo) InsertRoleGrants(ctx context.Context, roleName string, screenIDs []string, exec ...core.DBExecutor) error {
	r.onInsertRole(roleName, screenIDs)
	return nil
}
