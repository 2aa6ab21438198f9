package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/roster"
)

func (cli *commandLine) editRoster(sectionSN int, add, remove []int, submit bool) error {
	ctx := context.Background()

	rec := roster.NewReconciler(cli.rosterStore, sectionSN, roster.WithLogger(cli.logger))
	if err := rec.Load(ctx); err != nil {
		return err
	}

	if err := rec.BatchSet(add, true); err != nil {
		return err
	}
	if err := rec.BatchSet(remove, false); err != nil {
		return err
	}

	added, removed := rec.Diff()
	fmt.Fprintf(cli.out, "selected: %v\n", rec.Selected())
	fmt.Fprintf(cli.out, "pending: +%v -%v\n", added, removed)
	if conflicts := rec.Conflicts(); len(conflicts) > 0 {
		fmt.Fprintln(cli.out, "conflicts:")
		for _, c := range conflicts {
			fmt.Fprintf(cli.out, "  %s\n", c.String())
		}
	}

	if !submit {
		return nil
	}
	res, err := rec.Submit(ctx)
	if err != nil {
		var confErr *core.ConflictError
		if errors.As(err, &confErr) {
			fmt.Fprintln(cli.out, "partially accepted, rejected by the server:")
			for _, c := range confErr.Students {
				fmt.Fprintf(cli.out, "  %s\n", c.String())
			}
			return nil
		}
		return err
	}
	fmt.Fprintf(cli.out, "saved: +%v -%v (%d students)\n", res.Added, res.Removed, res.TotalCount)
	return nil
}
