package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/storage/database"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string         `boil:"id"`
	Name         string         `boil:"name"`
	Username     null.String    `boil:"username"`
	Email        null.String    `boil:"email"`
	IsActive     bool           `boil:"is_active"`
	Roles        pq.StringArray `boil:"roles"`
	PasswordHash null.Bytes     `boil:"password_hash"`
	CreatedAt    time.Time      `boil:"created_at"`
	UpdatedAt    time.Time      `boil:"updated_at"`
	LastLogin    null.Time      `boil:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) boil(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

// trapUniqueErr maps unique constraint violations to the user uniqueness errors.
func (repo userRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		if strings.Contains(constraint, "email") {
			return user.ErrEmailExists
		}
		return user.ErrUsernameExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var (
		conds []string
		args  []interface{}
	)
	if username != "" {
		conds = append(conds, "username = ?")
		args = append(args, username)
	}
	if email != "" {
		conds = append(conds, "email = ?")
		args = append(args, email)
	}
	if len(conds) == 0 {
		return nil
	}

	query := "SELECT " + userColumns + " FROM users WHERE (" + strings.Join(conds, " OR ") + ")"
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}

	var rows []*userRow
	if err := repo.bind(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.boil(usr)
	_, err := repo.execute(ctx, repo.getExec(exec),
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		cond string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "id = ?", []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = "username = ?", []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = "email = ?", []interface{}{filter.Email}
	case len(filter.UsernameOrEmail) > 0:
		uname := filter.UsernameOrEmail[0]
		email := uname
		if len(filter.UsernameOrEmail) > 1 && filter.UsernameOrEmail[1] != "" {
			email = filter.UsernameOrEmail[1]
		}
		if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "username = ? OR email = ?", []interface{}{uname, email}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := repo.bind(ctx, repo.getExec(exec), &row, "SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1", args...)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.boil(usr)
	cnt, err := repo.execute(ctx, repo.getExec(exec),
		`UPDATE users SET name = ?, username = ?, email = ?, is_active = ?, roles = ?, password_hash = ?,
		updated_at = ?, last_login = ? WHERE id = ?`,
		row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}
