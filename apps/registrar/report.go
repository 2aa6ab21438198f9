package main

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/darasa/core/report"
)

func (cli *commandLine) report(email string) error {
	ctx := context.Background()

	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return err
		}
		if err := cli.reportSvc.Email(ctx, *addr); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "transcripts sent to %s\n", addr.Address)
		return nil
	}

	transcripts, err := cli.reportSvc.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cli.out, report.RenderText(transcripts))
	return nil
}
