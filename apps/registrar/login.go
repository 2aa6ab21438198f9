package main

import (
	"context"
	"errors"
	"fmt"
)

func (cli *commandLine) login(uname, pwd string) error {
	if cli.client == nil {
		return errors.New("login is not available in demo mode")
	}
	ctx := context.Background()
	if err := cli.client.Login(ctx, uname, pwd); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged in. Export this token for later commands:")
	fmt.Fprintf(cli.out, "  RECORDSTORE_TOKEN=%s\n", cli.client.Auth().Token())
	return nil
}
