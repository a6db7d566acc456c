package permission

import (
	"context"
	"sort"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type (
	Repository interface {
		QueryScreens(ctx context.Context, exec ...core.DBExecutor) ([]Screen, error)
		// GetRoleScreenKeys returns the screen keys granted to one role tag.
		GetRoleScreenKeys(ctx context.Context, roleName string, exec ...core.DBExecutor) ([]string, error)
		GetUserScreenKeys(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)
		GetRoleScreenIDs(ctx context.Context, roleName string, exec ...core.DBExecutor) ([]string, error)
		GetUserScreenIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)
		DeleteRoleGrants(ctx context.Context, roleName string, exec ...core.DBExecutor) error
		InsertRoleGrants(ctx context.Context, roleName string, screenIDs []string, exec ...core.DBExecutor) error
		DeleteUserGrants(ctx context.Context, userID string, exec ...core.DBExecutor) error
		InsertUserGrants(ctx context.Context, userID string, screenIDs []string, exec ...core.DBExecutor) error
	}

	Service interface {
		QueryScreens(ctx context.Context) ([]Screen, error)
		// Resolve computes the effective screen-key set for a user: the
		// union of each held role tag's grants and the user's own grants.
		// A user with zero grants resolves to an empty set, not an error.
		Resolve(ctx context.Context, userID string, roles user.Roles) ([]string, error)
		GetRolePermissions(ctx context.Context, roleName string) ([]string, error)
		GetUserPermissions(ctx context.Context, userID string) ([]string, error)
		ReplaceRolePermissions(ctx context.Context, up RolePermissionsUpdate) error
		ReplaceUserPermissions(ctx context.Context, up UserPermissionsUpdate) error
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

func (svc *service) QueryScreens(ctx context.Context) ([]Screen, error) {
	return svc.repo.QueryScreens(ctx)
}

// Resolve queries grants per role tag and unions the results. Querying
// with the joined multi-tag string would match nothing, since grants are
// keyed by single tags.
func (svc *service) Resolve(ctx context.Context, userID string, roles user.Roles) ([]string, error) {
	allowed := make(map[string]struct{})

	for _, tag := range roles.Tags() {
		keys, err := svc.repo.GetRoleScreenKeys(ctx, tag)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			allowed[key] = struct{}{}
		}
	}

	keys, err := svc.repo.GetUserScreenKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		allowed[key] = struct{}{}
	}

	result := make([]string, 0, len(allowed))
	for key := range allowed {
		result = append(result, key)
	}
	sort.Strings(result)
	return result, nil
}

func (svc *service) GetRolePermissions(ctx context.Context, roleName string) ([]string, error) {
	return svc.repo.GetRoleScreenIDs(ctx, roleName)
}

func (svc *service) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	return svc.repo.GetUserScreenIDs(ctx, userID)
}

// ReplaceRolePermissions swaps a role's grant set in one transaction:
// clear existing, insert the new set. Duplicate screen ids collapse to a
// single grant.
func (svc *service) ReplaceRolePermissions(ctx context.Context, up RolePermissionsUpdate) error {
	return core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.DeleteRoleGrants(ctx, up.RoleName, tx); err != nil {
			return err
		}
		if len(up.ScreenIDs) == 0 {
			return nil
		}
		return svc.repo.InsertRoleGrants(ctx, up.RoleName, dedupe(up.ScreenIDs), tx)
	})
}

func (svc *service) ReplaceUserPermissions(ctx context.Context, up UserPermissionsUpdate) error {
	return core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.DeleteUserGrants(ctx, up.UserID, tx); err != nil {
			return err
		}
		if len(up.ScreenIDs) == 0 {
			return nil
		}
		return svc.repo.InsertUserGrants(ctx, up.UserID, dedupe(up.ScreenIDs), tx)
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
