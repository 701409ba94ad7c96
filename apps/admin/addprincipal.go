package main

import (
	"context"
	"fmt"
)

// addPrincipal updates or creates a principal, and creates their school if needed.
func (cli *commandLine) addPrincipal(ctx context.Context, name, email, pwd, schoolName string) error {
	p, sch, err := cli.svc.AddPrincipal(ctx, name, email, pwd, schoolName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "principal %s (%s) of school %q saved\n", p.Email, p.ID, sch.Name)
	return nil
}
