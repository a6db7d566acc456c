package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type dbUser struct {
	ID           string      `db:"id"`
	TenantID     string      `db:"tenant_id"`
	Name         null.String `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     null.Bool   `db:"is_active"`
	IsVerified   bool        `db:"is_verified"`
	Role         string      `db:"role"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (repo userRepository) pack(usr user.User) dbUser {
	u := dbUser{
		ID:           usr.ID,
		TenantID:     usr.TenantID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		IsVerified:   usr.IsVerified,
		Role:         usr.Roles.String(),
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
	return u
}

func (repo userRepository) unpack(u dbUser) user.User {
	return user.User{
		ID:           u.ID,
		TenantID:     u.TenantID,
		Name:         u.Name.String,
		Username:     u.Username.String,
		Email:        u.Email.String,
		IsActive:     u.IsActive.Ptr(),
		IsVerified:   u.IsVerified,
		Roles:        user.ParseRoles(u.Role),
		PasswordHash: u.PasswordHash.Bytes,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
		LastLogin:    u.LastLogin.Time,
	}
}

const userColumns = `id, tenant_id, name, username, email, is_active, is_verified, role, password_hash, created_at, updated_at, last_login`

// getUser runs a query expected to match at most one user row.
func (repo userRepository) getUser(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (user.User, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "querying user")
	}
	defer func() { _ = rows.Close() }()

	var users []dbUser
	if err = sqlx.StructScan(rows, &users); err != nil {
		return user.User{}, errors.Wrap(err, "scanning user")
	}
	if len(users) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unpack(users[0]), nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	excludedIDs := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excludedIDs = append(excludedIDs, u.ID)
	}

	check := func(column, value string, notFoundErr error) error {
		if value == "" {
			return nil
		}
		query := `SELECT EXISTS (SELECT 1 FROM users WHERE ` + column + ` = $1 AND NOT (id = ANY($2)))`
		var exists bool
		if err := exe.QueryRowContext(ctx, query, value, pq.Array(excludedIDs)).Scan(&exists); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if exists {
			return notFoundErr
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.pack(usr)

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		u.ID, u.TenantID, u.Name, u.Username, u.Email, u.IsActive, u.IsVerified,
		u.Role, u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLogin)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return repo.getUser(ctx, repo.getExec(exec), query, id)
}

func (repo userRepository) GetTenantUserByID(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`
	return repo.getUser(ctx, repo.getExec(exec), query, tenantID, id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return repo.getUser(ctx, repo.getExec(exec), query, email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return repo.getUser(ctx, repo.getExec(exec), query, username)
}

func (repo userRepository) FilterUsers(ctx context.Context, tenantID string, filter user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	where := []string{"tenant_id = ?"}
	args := []interface{}{tenantID}

	if filter.Search != "" {
		where = append(where, "(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)")
		val := "%" + filter.Search + "%"
		args = append(args, val, val, val)
	}
	if len(filter.Roles) > 0 {
		// the role column holds comma-joined tags; match each tag exactly
		where = append(where, "string_to_array(role, ',') && ?")
		args = append(args, pq.Array(filter.Roles))
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, filter.CreatedTo.UTC())
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(where, " AND ")
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	var dbUsers []dbUser
	if err = sqlx.StructScan(rows, &dbUsers); err != nil {
		return nil, errors.Wrap(err, "scanning users")
	}
	users := make([]user.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, repo.unpack(u))
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	u := repo.pack(usr)

	set := []string{"name = ?", "username = ?", "email = ?", "updated_at = ?"}
	args := []interface{}{u.Name, u.Username, u.Email, u.UpdatedAt}
	if usr.PasswordHash != nil {
		set = append(set, "password_hash = ?")
		args = append(args, u.PasswordHash)
	}
	if isActive != nil {
		set = append(set, "is_active = ?")
		args = append(args, *isActive)
	}
	args = append(args, usr.ID)

	query := sqlx.Rebind(sqlx.DOLLAR, `UPDATE users SET `+strings.Join(set, ", ")+` WHERE id = ?`)
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID, exec...)
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, t time.Time, exec ...core.DBExecutor) error {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`
	if _, err := repo.getExec(exec).ExecContext(ctx, query, t.UTC(), id); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

func (repo userRepository) SetVerified(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) error {
	query := `UPDATE users SET is_verified = true WHERE tenant_id = $1 AND id = $2`
	res, err := repo.getExec(exec).ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "verifying user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) GetUserRoleForUpdate(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (string, error) {
	query := `SELECT role FROM users WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	var role string
	if err := repo.getExec(exec).QueryRowContext(ctx, query, tenantID, id).Scan(&role); err != nil {
		if err == sql.ErrNoRows {
			return "", user.ErrNotFound
		}
		return "", errors.Wrap(err, "locking user role")
	}
	return role, nil
}

func (repo userRepository) UpdateUserRole(ctx context.Context, tenantID, id, role string, exec ...core.DBExecutor) error {
	query := `UPDATE users SET role = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4`
	res, err := repo.getExec(exec).ExecContext(ctx, query, role, time.Now().UTC(), tenantID, id)
	if err != nil {
		return errors.Wrap(err, "updating user role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

const profileColumns = `user_id, full_name, phone_number, address, service_status, updated_at`

func (repo userRepository) getProfile(ctx context.Context, exe core.DBExecutor, query, userID string) (user.Profile, error) {
	var p user.Profile
	var updatedAt null.Time
	err := exe.QueryRowContext(ctx, query, userID).
		Scan(&p.UserID, &p.FullName, &p.PhoneNumber, &p.Address, &p.ServiceStatus, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "querying profile")
	}
	p.UpdatedAt = updatedAt.Time
	return p, nil
}

func (repo userRepository) GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return repo.getProfile(ctx, repo.getExec(exec), query, userID)
}

func (repo userRepository) GetProfileForUpdate(ctx context.Context, userID string, exec ...core.DBExecutor) (user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 FOR UPDATE`
	return repo.getProfile(ctx, repo.getExec(exec), query, userID)
}

func (repo userRepository) UpsertProfile(ctx context.Context, profile user.Profile, exec ...core.DBExecutor) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone_number = EXCLUDED.phone_number,
			address = EXCLUDED.address,
			service_status = EXCLUDED.service_status,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		profile.UserID, profile.FullName, profile.PhoneNumber, profile.Address,
		profile.ServiceStatus, profile.UpdatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "upserting profile")
	}
	return nil
}
