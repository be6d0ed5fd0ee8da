package main

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	throttlesvc "github.com/trezcool/academia/services/throttle"
	tokensvc "github.com/trezcool/academia/services/token"
	"github.com/trezcool/academia/storage/database"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

const pwd = "Str0ng!Passw0rd"

var accRepo account.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()
	conf := testutil.NewConfig()

	// set up DB & repos
	db := dummydb.Open()
	accRepo = dummydb.NewAccountRepository(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)

	// start CLI
	return &commandLine{
		accountSvc: account.NewService(
			db,
			accRepo,
			tokensvc.NewJWTCodec(conf),
			throttlesvc.NewMemoryThrottle(conf),
			emailsvc.NewConsoleServiceMock(conf, logger),
			conf,
		),
		validate: validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateFunc = func(_ *database.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	defer func() { migrateFunc = database.Migrate }()

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_semesters", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli := setup(t)
	testutil.CreateAccount(t, accRepo, "taken", pwd, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "no email", args: []string{"createadmin", "-username", "root"}, extra: extra{pwd: pwd}, wantErr: errHelp},
		{name: "no password", args: []string{"createadmin", "-username", "root", "-email", "root@academia.test"}, wantErr: errHelp},
		{
			name: "username taken", args: []string{"createadmin", "-username", "taken", "-email", "root@academia.test"},
			extra: extra{pwd: pwd}, wantErr: account.ErrAccountExists,
		},
		{name: "created", args: []string{"createadmin", "-username", "Root", "-email", "root@academia.test"}, extra: extra{pwd: pwd}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if extra, ok := tt.extra.(extra); ok {
			mockPassword(extra.pwd)
		} else {
			mockPassword("")
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	t.Run("weak password", func(t *testing.T) {
		mockPassword("12345678")
		err := cli.run([]string{"admin", "createadmin", "-username", "weak", "-email", "weak@academia.test"})
		if core.KindOf(err) != core.KindValidation {
			t.Errorf("cli.run() error = %v, want a validation error", err)
		}
	})

	acc, err := accRepo.GetAccountByUsernameOrEmail(context.Background(), "root")
	if err != nil {
		t.Fatalf("GetAccountByUsernameOrEmail() failed: %v", err)
	}
	if !acc.IsActive {
		t.Error("admin account is not active")
	}
	roles, _ := accRepo.AccountRoles(context.Background(), acc.ID)
	if len(roles) != 1 || roles[0] != account.RoleAdmin {
		t.Errorf("roles = %v, want [%s]", roles, account.RoleAdmin)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	acc := testutil.CreateAccount(t, accRepo, "awe", pwd, true, account.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "N3w!Password"}, wantErr: account.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", acc.Username}, extra: extra{pwd: "N3w!Password"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@academia.test"}, extra: extra{pwd: "An0ther!Password"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if extra, ok := tt.extra.(extra); ok {
			mockPassword(extra.pwd)
		} else {
			mockPassword("")
		}

		t.Run(tt.name, func(t *testing.T) {
			before, _ := accRepo.GetAccount(context.Background(), acc.ID)
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}
			after, err := accRepo.GetAccount(context.Background(), acc.ID)
			if err != nil {
				t.Fatalf("GetAccount() failed, %v", err)
			}
			if bytes.Equal(after.PasswordHash, before.PasswordHash) {
				t.Error("failed to update new password")
			}
			if err = after.CheckPassword(tt.extra.(extra).pwd); err != nil {
				t.Errorf("CheckPassword() failed: %v", err)
			}
		})
	}
}

func Test_commandLine_setActive(t *testing.T) {
	cli := setup(t)
	acc := testutil.CreateAccount(t, accRepo, "ben", pwd, true, account.RoleStudent)

	tests := []cliTest{
		{name: "no args", args: []string{"setactive"}, wantErr: errHelp},
		{name: "account not found", args: []string{"setactive", "-username", "lol", "-active=false"}, wantErr: account.ErrNotFound},
		{name: "deactivate", args: []string{"setactive", "-username", "ben", "-active=false"}, extra: false},
		{name: "activate", args: []string{"setactive", "-username", "ben@academia.test"}, extra: true},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
			if want, ok := tt.extra.(bool); ok {
				refreshed, _ := accRepo.GetAccount(context.Background(), acc.ID)
				if refreshed.IsActive != want {
					t.Errorf("IsActive = %v, want %v", refreshed.IsActive, want)
				}
			}
		})
	}
}

func Test_commandLine_revokeRole(t *testing.T) {
	cli := setup(t)
	acc := testutil.CreateAccount(t, accRepo, "cleo", pwd, true, account.RoleTeacher, account.RoleStudent)

	tests := []cliTest{
		{name: "no args", args: []string{"revokerole"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"revokerole", "-username", "cleo", "-role", "Janitor"}, wantErr: errHelp},
		{name: "account not found", args: []string{"revokerole", "-username", "lol", "-role", account.RoleTeacher}, wantErr: account.ErrNotFound},
		{name: "revoked", args: []string{"revokerole", "-username", "cleo", "-role", account.RoleTeacher}},
		{name: "not held", args: []string{"revokerole", "-username", "cleo", "-role", account.RoleAdmin}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	roles, _ := accRepo.AccountRoles(context.Background(), acc.ID)
	if len(roles) != 1 || roles[0] != account.RoleStudent {
		t.Errorf("roles = %v, want [%s]", roles, account.RoleStudent)
	}
}
