package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(username, email, excludedUsers)
}

func (repo *userRepository) checkUniqueness(username, email string, excludedUsers []user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	for _, usr := range repo.db.t.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, nil); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.t.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case len(filter.UsernameOrEmail) > 0:
			for _, v := range filter.UsernameOrEmail {
				if v != "" && (usr.Username == v || usr.Email == v) {
					return usr, nil
				}
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, []user.User{usr}); err != nil {
		return user.User{}, err
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}
