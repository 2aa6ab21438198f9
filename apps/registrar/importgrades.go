package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/darasa/core/grades"
)

func (cli *commandLine) importGrades(sectionSN int, path string) error {
	ctx := context.Background()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, invalid, err := grades.ReadImportFile(f)
	if err != nil {
		return err
	}

	eng := grades.NewEngine(cli.gradeStore, sectionSN, grades.WithLogger(cli.logger))
	defer eng.Close()
	if err := eng.Load(ctx); err != nil {
		return err
	}

	report, err := eng.ImportBatch(ctx, records)
	if err != nil {
		return err
	}

	stats := report.Stats
	stats.Invalid += len(invalid)
	fmt.Fprintf(cli.out, "imported: %d success, %d failed, %d invalid\n", stats.Success, stats.Failed, stats.Invalid)
	for _, rec := range invalid {
		fmt.Fprintf(cli.out, "  skipped %q: %s\n", rec.Record.StudentNo, rec.Reason)
	}
	for _, rec := range report.InvalidRecords {
		fmt.Fprintf(cli.out, "  rejected %q: %s\n", rec.Record.StudentNo, rec.Reason)
	}
	return nil
}
