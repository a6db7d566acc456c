package sqlxrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/permission"
)

type permissionRepository struct {
	exec core.DBExecutor
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(exec core.DBExecutor) *permissionRepository {
	return &permissionRepository{exec: exec}
}

func (repo permissionRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo permissionRepository) queryStrings(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) ([]string, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (repo permissionRepository) QueryScreens(ctx context.Context, exec ...core.DBExecutor) ([]permission.Screen, error) {
	query := `SELECT id, screen_key, display_name FROM screens ORDER BY display_name`
	rows, err := repo.getExec(exec).QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying screens")
	}
	defer func() { _ = rows.Close() }()

	var screens []permission.Screen
	for rows.Next() {
		var s permission.Screen
		if err = rows.Scan(&s.ID, &s.Key, &s.DisplayName); err != nil {
			return nil, errors.Wrap(err, "scanning screen")
		}
		screens = append(screens, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning screens")
	}
	return screens, nil
}

func (repo permissionRepository) GetRoleScreenKeys(ctx context.Context, roleName string, exec ...core.DBExecutor) ([]string, error) {
	query := `
		SELECT s.screen_key FROM role_screen_permissions rsp
		JOIN screens s ON s.id = rsp.screen_id
		WHERE rsp.role_name = $1`
	keys, err := repo.queryStrings(ctx, repo.getExec(exec), query, roleName)
	return keys, errors.Wrap(err, "querying role screen keys")
}

func (repo permissionRepository) GetUserScreenKeys(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	query := `
		SELECT s.screen_key FROM user_screen_permissions usp
		JOIN screens s ON s.id = usp.screen_id
		WHERE usp.user_id = $1`
	keys, err := repo.queryStrings(ctx, repo.getExec(exec), query, userID)
	return keys, errors.Wrap(err, "querying user screen keys")
}

func (repo permissionRepository) GetRoleScreenIDs(ctx context.Context, roleName string, exec ...core.DBExecutor) ([]string, error) {
	query := `SELECT screen_id FROM role_screen_permissions WHERE role_name = $1`
	ids, err := repo.queryStrings(ctx, repo.getExec(exec), query, roleName)
	return ids, errors.Wrap(err, "querying role screen ids")
}

func (repo permissionRepository) GetUserScreenIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	query := `SELECT screen_id FROM user_screen_permissions WHERE user_id = $1`
	ids, err := repo.queryStrings(ctx, repo.getExec(exec), query, userID)
	return ids, errors.Wrap(err, "querying user screen ids")
}

func (repo permissionRepository) DeleteRoleGrants(ctx context.Context, roleName string, exec ...core.DBExecutor) error {
	query := `DELETE FROM role_screen_permissions WHERE role_name = $1`
	if _, err := repo.getExec(exec).ExecContext(ctx, query, roleName); err != nil {
		return errors.Wrap(err, "deleting role grants")
	}
	return nil
}

func (repo permissionRepository) InsertRoleGrants(ctx context.Context, roleName string, screenIDs []string, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO role_screen_permissions (role_name, screen_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`
	if _, err := repo.getExec(exec).ExecContext(ctx, query, roleName, pq.Array(screenIDs)); err != nil {
		return errors.Wrap(err, "inserting role grants")
	}
	return nil
}

func (repo permissionRepository) DeleteUserGrants(ctx context.Context, userID string, exec ...core.DBExecutor) error {
	query := `DELETE FROM user_screen_permissions WHERE user_id = $1`
	if _, err := repo.getExec(exec).ExecContext(ctx, query, userID); err != nil {
		return errors.Wrap(err, "deleting user grants")
	}
	return nil
}

func (repo permissionRepository) InsertUserGrants(ctx context.Context, userID string, screenIDs []string, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO user_screen_permissions (user_id, screen_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`
	if _, err := repo.getExec(exec).ExecContext(ctx, query, userID, pq.Array(screenIDs)); err != nil {
		return errors.Wrap(err, "inserting user grants")
	}
	return nil
}
