package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrSelfRoleChange = errors.New("cannot change own roles")
)

// Actor identifies the caller of a privileged operation.
type Actor struct {
	ID       string
	TenantID string
	Roles    Roles
}

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetTenantUserByID(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields, scoped to the tenant.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, tenantID string, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, id string, t time.Time, exec ...core.DBExecutor) error
		SetVerified(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) error

		// GetUserRoleForUpdate reads the raw role string with a row lock so
		// the read-diff-write sequence cannot interleave with a concurrent
		// role mutation on the same user.
		GetUserRoleForUpdate(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (string, error)
		UpdateUserRole(ctx context.Context, tenantID, id, role string, exec ...core.DBExecutor) error

		GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (Profile, error)
		GetProfileForUpdate(ctx context.Context, userID string, exec ...core.DBExecutor) (Profile, error)
		UpsertProfile(ctx context.Context, profile Profile, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(ctx context.Context, tenantID string, nu NewUser) (User, error)
		Query(ctx context.Context, tenantID string, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetTenantUser(ctx context.Context, tenantID, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, origUsr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Verify(ctx context.Context, tenantID, id string) error

		// SetRole toggles one role tag on the target user inside a single
		// audited transaction. Callers mutating their own role set are
		// rejected with ErrSelfRoleChange before any transaction begins.
		SetRole(ctx context.Context, actor Actor, userID string, ru RoleUpdate) (Roles, error)

		GetProfile(ctx context.Context, userID string) (Profile, error)
		// UpdateProfile applies a self-service profile edit, writing one
		// change log per actually-changed field in the same transaction.
		UpdateProfile(ctx context.Context, actorID, userID string, up UpdateProfile) (Profile, error)

		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		db       core.DB
		repo     Repository
		auditSvc audit.Service
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, auditSvc audit.Service, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &service{
		db:       db,
		repo:     repo,
		auditSvc: auditSvc,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, tenantID string, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		TenantID:  tenantID,
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     NewRoles(nu.Roles...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, tenantID string, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.FilterUsers(ctx, tenantID, *filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetTenantUser(ctx context.Context, tenantID, id string) (User, error) {
	return svc.repo.GetTenantUserByID(ctx, tenantID, id)
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) Update(ctx context.Context, origUsr User, uu UpdateUser) (User, error) {
	usr := User{
		ID:        origUsr.ID,
		TenantID:  origUsr.TenantID,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, usr.LastLogin); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) Verify(ctx context.Context, tenantID, id string) error {
	return svc.repo.SetVerified(ctx, tenantID, id)
}

func (svc *service) SetRole(ctx context.Context, actor Actor, userID string, ru RoleUpdate) (Roles, error) {
	if actor.ID == userID {
		return nil, ErrSelfRoleChange
	}
	grant := ru.Grant != nil && *ru.Grant

	var roles Roles
	err := core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		raw, err := svc.repo.GetUserRoleForUpdate(ctx, actor.TenantID, userID, tx)
		if err != nil {
			return err
		}

		roles = ParseRoles(raw)
		previous := roles.String()
		if grant {
			roles.Add(ru.Role)
		} else {
			roles.Remove(ru.Role)
		}
		proposed := roles.String()

		if audit.Changed(previous, proposed) {
			if err = svc.repo.UpdateUserRole(ctx, actor.TenantID, userID, proposed, tx); err != nil {
				return err
			}
			return svc.auditSvc.Record(ctx, audit.Entry{
				TenantID:       actor.TenantID,
				AdminUserID:    actor.ID,
				AffectedUserID: userID,
				ActionType:     audit.ActionRoleChange,
				Description:    "Role permissions updated",
				PreviousValue:  previous,
				NewValue:       proposed,
			}, tx)
		}

		// no semantic change; still repair a malformed stored role string
		if raw != proposed {
			return svc.repo.UpdateUserRole(ctx, actor.TenantID, userID, proposed, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (svc *service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	return svc.repo.GetProfile(ctx, userID)
}

func (svc *service) UpdateProfile(ctx context.Context, actorID, userID string, up UpdateProfile) (Profile, error) {
	profile := Profile{
		UserID:        userID,
		FullName:      up.FullName,
		PhoneNumber:   up.PhoneNumber,
		Address:       up.Address,
		ServiceStatus: up.ServiceStatus,
		UpdatedAt:     time.Now().UTC(),
	}

	err := core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		old, err := svc.repo.GetProfileForUpdate(ctx, userID, tx)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return err
		}

		fields := []struct {
			name     string
			old, new string
		}{
			{"full_name", old.FullName, profile.FullName},
			{"phone_number", old.PhoneNumber, profile.PhoneNumber},
			{"address", old.Address, profile.Address},
			{"service_status", old.ServiceStatus, profile.ServiceStatus},
		}
		for _, f := range fields {
			if f.old == f.new {
				continue
			}
			change := audit.ChangeLog{
				UserID:          userID,
				ChangedByUserID: actorID,
				FieldName:       f.name,
				OldValue:        f.old,
				NewValue:        f.new,
			}
			if err = svc.auditSvc.RecordChange(ctx, change, tx); err != nil {
				return err
			}
		}
		return svc.repo.UpsertProfile(ctx, profile, tx)
	})
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		return
	}
	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password Reset",
		BodyStr: fmt.Sprintf("Please follow this link to reset your password: %s", url),
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return err
}
