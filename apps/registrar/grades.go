package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/trezcool/darasa/core/grades"
)

func (cli *commandLine) editGrades(sectionSN int, assignments []assignment, save bool) error {
	ctx := context.Background()

	eng := grades.NewEngine(cli.gradeStore, sectionSN, grades.WithLogger(cli.logger))
	defer eng.Close()
	if err := eng.Load(ctx); err != nil {
		return err
	}

	for _, a := range assignments {
		if err := eng.SetGrade(a.studentSN, a.grade); err != nil {
			return err
		}
	}

	if save && eng.Dirty() {
		if err := eng.Save(ctx); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SN\tNO\tNAME\tGRADE")
	for _, row := range eng.Rows() {
		grade := "-"
		if row.Grade.Valid {
			grade = fmt.Sprintf("%.1f", row.Grade.Float64)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", row.StudentSN, row.StudentNo, row.StudentName, grade)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "state: %s (version %s)\n", eng.State(), eng.Version())
	return nil
}
