package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/core/publish"
	"github.com/trezcool/alama/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	out        io.Writer
	usrRepo    user.Repository
	examRepo   exam.Repository
	gradingSvc grading.Service
	publishSvc publish.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a database migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin | -role ROLE] - add or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  publish -class CLASS_ID -term TERM - publish the results of a class term")
	fmt.Fprintln(cli.out, "  gradescale - print the grade scale")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")
	addUserRole := addUserCmd.String("role", "", "The role of the user: admin, teacher, student or parent.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	publishCmd := flag.NewFlagSet("publish", flag.ContinueOnError)
	publishClass := publishCmd.Int64("class", 0, "The class ID.")
	publishTerm := publishCmd.String("term", "", "The term, e.g. \"First Term\".")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		roles, err := parseRoles(*addUserAdmin, *addUserRole)
		if err != nil {
			return err
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, roles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "publish":
		if err := publishCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *publishClass <= 0 || strings.TrimSpace(*publishTerm) == "" {
			publishCmd.Usage()
			return errHelp
		}
		return cli.publish(*publishClass, *publishTerm)

	case "gradescale":
		return cli.gradeScale()

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	return string(pwd), err
}

// parseRoles maps the -admin and -role flags to user roles.
func parseRoles(isAdmin bool, role string) ([]string, error) {
	if isAdmin {
		return user.AllRoles, nil
	}
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "":
		return nil, nil
	case "admin":
		return user.AdminRoles, nil
	case "teacher":
		return user.TeacherRoles, nil
	case "student":
		return user.StudentRoles, nil
	case "parent":
		return user.ParentRoles, nil
	default:
		return nil, fmt.Errorf("%q: no such role", role)
	}
}
