package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *database.DB
	accountSvc *account.Service
	validate   *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a database migration command (up, down, status...)")
	fmt.Println("  createadmin -username USERNAME -email EMAIL - create an administrator account")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset an account's password")
	fmt.Println("  setactive -username USERNAME|EMAIL -active=true|false - activate or deactivate an account")
	fmt.Println("  revokerole -username USERNAME|EMAIL -role ROLE - remove a role from an account")
}

// readPassword prompts for a password. An empty one is reported as errHelp.
func readPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createAdminUname := createAdminCmd.String("username", "", "The admin's username. The password will be prompted next.")
	createAdminEmail := createAdminCmd.String("email", "", "The admin's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The account's username or email. The password will be prompted next.")

	setActiveCmd := flag.NewFlagSet("setactive", flag.ContinueOnError)
	setActiveUname := setActiveCmd.String("username", "", "The account's username or email.")
	setActiveValue := setActiveCmd.Bool("active", true, "Whether the account may log in.")

	revokeRoleCmd := flag.NewFlagSet("revokerole", flag.ContinueOnError)
	revokeRoleUname := revokeRoleCmd.String("username", "", "The account's username or email.")
	revokeRoleName := revokeRoleCmd.String("role", "", "One of: Administrator, Teacher, Student.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return migrateFunc(cli.db, args[2], args[3:]...)

	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *createAdminUname == "" || *createAdminEmail == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		pwd, err := readPassword(createAdminCmd.Usage)
		if err != nil {
			return err
		}
		return cli.createAdmin(*createAdminUname, *createAdminEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := readPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "setactive":
		if err := setActiveCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *setActiveUname == "" {
			setActiveCmd.Usage()
			return errHelp
		}
		return cli.setActive(*setActiveUname, *setActiveValue)

	case "revokerole":
		if err := revokeRoleCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *revokeRoleUname == "" || !account.HasAnyRole(account.AllRoles, []string{*revokeRoleName}) {
			revokeRoleCmd.Usage()
			return errHelp
		}
		return cli.revokeRole(*revokeRoleUname, *revokeRoleName)

	default:
		cli.printUsage()
		return errHelp
	}
}
