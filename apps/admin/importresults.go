package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/result"
)

func (cli *commandLine) importResults(path, recorder, examDate string, maxErrors int) error {
	opts := result.ImportOptions{RecordedBy: recorder, MaxReportedErrors: maxErrors}
	if examDate != "" {
		d, err := time.Parse("2006-01-02", examDate)
		if err != nil {
			return errors.Errorf("invalid exam date %q, expected YYYY-MM-DD", examDate)
		}
		opts.ExamDate = d
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening results file")
	}
	defer f.Close()

	report, err := cli.resultSvc.Import(context.Background(), f, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%d result(s) imported, %d row(s) skipped\n", report.ImportedCount, report.TotalErrors)
	for _, rowErr := range report.Errors {
		fmt.Fprintf(cli.out, "  row %d: %s\n", rowErr.RowIndex, rowErr.Message)
	}
	if hidden := report.TotalErrors - len(report.Errors); hidden > 0 {
		fmt.Fprintf(cli.out, "  ... and %d more\n", hidden)
	}
	return nil
}
