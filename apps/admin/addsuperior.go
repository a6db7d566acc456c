package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

// addSuperior creates (or promotes) a superior admin within a tenant,
// creating the tenant row first if it does not exist yet.
func (cli *commandLine) addSuperior(tenantID, uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if _, err := uuid.Parse(tenantID); err != nil {
		return errors.New("tenant must be a valid UUID")
	}
	q := `INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	if _, err := cli.db.ExecContext(ctx, q, tenantID, uname+"'s tenant"); err != nil {
		return errors.Wrap(err, "ensuring tenant")
	}

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			TenantID:   tenantID,
			Name:       uname,
			Username:   uname,
			Email:      email,
			IsVerified: true,
			Roles:      user.NewRoles(user.RoleSuperiorAdmin),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		usr.SetActive(true)
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}

	// existing user: promote and reset credentials
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr, nil); err != nil {
		return err
	}
	return cli.usrRepo.UpdateUserRole(ctx, usr.TenantID, usr.ID, user.NewRoles(user.RoleSuperiorAdmin).String())
}
