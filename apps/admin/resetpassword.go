package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, teacherID, pwd string) error {
	if err := cli.svc.SetTeacherPassword(ctx, teacherID, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s updated\n", teacherID)
	return nil
}
