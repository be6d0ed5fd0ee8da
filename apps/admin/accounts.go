package main

import (
	"context"

	"github.com/trezcool/academia/core/account"
)

func (cli *commandLine) createAdmin(uname, email, pwd string) error {
	na := account.NewAccount{Username: uname, Email: email, Password: pwd}
	if err := na.Validate(cli.validate); err != nil {
		return err
	}
	_, err := cli.accountSvc.CreateAdmin(context.Background(), na)
	return err
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	acc, err := cli.accountSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return cli.accountSvc.ResetPassword(ctx, acc.ID, pwd)
}

func (cli *commandLine) setActive(uname string, active bool) error {
	ctx := context.Background()
	acc, err := cli.accountSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return cli.accountSvc.SetActive(ctx, acc.ID, active)
}

func (cli *commandLine) revokeRole(uname, role string) error {
	ctx := context.Background()
	acc, err := cli.accountSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return cli.accountSvc.RevokeRole(ctx, acc.ID, role)
}
