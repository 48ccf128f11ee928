package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if roles != nil {
		usr.Roles = roles
	}
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
