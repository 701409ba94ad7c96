package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/elimu/core/identity"
	"github.com/trezcool/elimu/core/school"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("no database: set database.engine to postgres")
)

type commandLine struct {
	db    *sqlx.DB // nil with the in-memory engine
	svc   *school.Service
	codec identity.Codec
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  resetpassword -teacher TEACHER_ID - reset a teacher's password")
	fmt.Fprintln(cli.out, "  addprincipal -email EMAIL [-name NAME] [-school SCHOOL] - create or update a principal and their school")
	fmt.Fprintln(cli.out, "  token encode -id ID | token decode -token TOKEN - encode or decode an identity token")
}

func (cli *commandLine) readPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordTeacher := resetPasswordCmd.String("teacher", "", "The teacher's ID, e.g. TCH4F9A2B. The password will be prompted next.")

	addPrincipalCmd := flag.NewFlagSet("addprincipal", flag.ExitOnError)
	addPrincipalEmail := addPrincipalCmd.String("email", "", "The principal's email. The password will be prompted next.")
	addPrincipalName := addPrincipalCmd.String("name", "", "The principal's name.")
	addPrincipalSchool := addPrincipalCmd.String("school", "", "The school's name, used when it does not exist yet.")

	encodeCmd := flag.NewFlagSet("token encode", flag.ExitOnError)
	encodeID := encodeCmd.String("id", "", "The identifier to encode.")
	decodeCmd := flag.NewFlagSet("token decode", flag.ExitOnError)
	decodeToken := decodeCmd.String("token", "", "The token to decode, e.g. the value of a teacherId cookie.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordTeacher == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordTeacher, pwd)
	case "addprincipal":
		if err := addPrincipalCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addPrincipalEmail == "" {
			addPrincipalCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(addPrincipalCmd)
		if err != nil {
			return err
		}
		return cli.addPrincipal(ctx, *addPrincipalName, *addPrincipalEmail, pwd, *addPrincipalSchool)
	case "token":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		switch args[2] {
		case "encode":
			if err := encodeCmd.Parse(args[3:]); err != nil {
				return err
			}
			if *encodeID == "" {
				encodeCmd.Usage()
				return errHelp
			}
			return cli.encodeToken(*encodeID)
		case "decode":
			if err := decodeCmd.Parse(args[3:]); err != nil {
				return err
			}
			if *decodeToken == "" {
				decodeCmd.Usage()
				return errHelp
			}
			return cli.decodeToken(*decodeToken)
		}
		cli.printUsage()
		return errHelp
	default:
		cli.printUsage()
		return errHelp
	}
}
