package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        usr.Roles, // nil is NULL
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Ptr(),
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	w := new(where)
	w.add("(username = ? OR email = ?)", null.NewString(username, username != ""), null.NewString(email, email != ""))
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			if isUUID(u.ID) {
				ids = append(ids, u.ID)
			}
		}
		if len(ids) > 0 {
			if err := w.in("id", ids); err != nil {
				return err
			}
			w.conds[len(w.conds)-1] = "NOT " + w.conds[len(w.conds)-1]
		}
	}
	q, args := w.query(`SELECT EXISTS(SELECT 1 FROM "user"`, ")")

	found, err := exists(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if found {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	w := new(where)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		names := make([]string, 0, len(filter.UsernameOrEmail))
		for _, n := range filter.UsernameOrEmail {
			if n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return user.User{}, user.ErrNotFound
		}
		cond, args, err := inBoth("username", "email", names)
		if err != nil {
			return user.User{}, err
		}
		w.add(cond, args...)
	default:
		return user.User{}, user.ErrNotFound
	}
	q, args := w.query(`SELECT `+userColumns+` FROM "user"`, limit(1))

	var rows []userRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if len(rows) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rows[0].toUser(), nil
}

// inBoth renders `(a IN (...) OR b IN (...))` over the same values.
func inBoth(a, b string, values []string) (string, []interface{}, error) {
	w := new(where)
	if err := w.in(a, values); err != nil {
		return "", nil, err
	}
	if err := w.in(b, values); err != nil {
		return "", nil, err
	}
	return "(" + w.conds[0] + " OR " + w.conds[1] + ")", w.args, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	res, err := namedExec(ctx, repo.getExec(exec), `
		UPDATE "user" SET
			name = :name,
			username = :username,
			email = :email,
			is_active = COALESCE(:is_active, is_active),
			roles = COALESCE(:roles, roles),
			password_hash = COALESCE(:password_hash, password_hash),
			updated_at = :updated_at,
			last_login = COALESCE(:last_login, last_login)
		WHERE id = :id`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}
