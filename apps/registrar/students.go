package main

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func (cli *commandLine) listStudents(page, size int) error {
	ctx := context.Background()
	students, total, err := cli.reg.ListStudents(ctx, page, size)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SN\tNO\tNAME\tGENDER")
	for _, stu := range students {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", stu.SN, stu.No, stu.Name, stu.Gender)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if total >= 0 {
		fmt.Fprintf(cli.out, "page %d (%d total)\n", page, total)
	}
	return nil
}
