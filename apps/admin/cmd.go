package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                        - apply pending database migrations")
	fmt.Println("  addsuperior -tenant TENANT_ID -username UNAME  - create a superior admin; the password is prompted next")
	fmt.Println("  resetpassword -username USERNAME|EMAIL         - reset user's password; the password is prompted next")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSuperiorCmd := flag.NewFlagSet("addsuperior", flag.ExitOnError)
	addSuperiorTenant := addSuperiorCmd.String("tenant", "", "The tenant the superior admin belongs to.")
	addSuperiorUname := addSuperiorCmd.String("username", "", "The superior admin's username.")
	addSuperiorEmail := addSuperiorCmd.String("email", "", "The superior admin's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "addsuperior":
		if err := addSuperiorCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSuperiorTenant == "" || *addSuperiorUname == "" {
			addSuperiorCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.addSuperior(*addSuperiorTenant, *addSuperiorUname, *addSuperiorEmail, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}
