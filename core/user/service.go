package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("user", "")
	ErrUserExists = errors.New("a user with this username or email already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		GetByID(id string) (User, error)
		GetByUsernameOrEmail(uname string) (User, error)
		SetLastLogin(usr User) (User, error)
		ResetPassword(uname, pwd string) (User, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers); err != nil {
		if errors.Cause(err) != ErrUserExists {
			return err
		}
		var fields []core.FieldError
		if uname != "" {
			fields = append(fields, core.FieldError{Field: "username", Error: err.Error()})
		}
		if email != "" {
			fields = append(fields, core.FieldError{Field: "email", Error: err.Error()})
		}
		return core.NewValidationError(err, fields...)
	}
	return nil
}

func (svc *Service) Create(nu NewUser) (User, error) {
	now := core.NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(context.Background(), usr)
}

func (svc *Service) GetByID(id string) (User, error) {
	return svc.repo.GetUser(context.Background(), GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(context.Background(), GetFilter{UsernameOrEmail: []string{uname}})
}

func (svc *Service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(context.Background(), usr)
}

// ResetPassword sets a new password on the user matching uname (username or email), after applying the password policy.
func (svc *Service) ResetPassword(uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(uname)
	if err != nil {
		return User{}, err
	}
	if tag := PasswordPolicyViolation(pwd, usr.Name, usr.Username, usr.Email); tag != "" {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: tag})
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateUser(context.Background(), usr)
}
