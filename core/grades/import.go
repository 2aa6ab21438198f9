package grades

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ImportBatch validates and submits a bulk grade import. Records with a
// non-finite or out-of-range grade are rejected locally and reported, never
// submitted; the server's 3-way stats are merged with the local rejections.
// Successfully imported rows survive a partial failure: the board is reloaded
// afterwards so baseline matches server state exactly.
func (e *Engine) ImportBatch(ctx context.Context, records []ImportRecord) (ImportReport, error) {
	var (
		report ImportReport
		valid  = make([]ImportRecord, 0, len(records))
	)
	for _, rec := range records {
		if reason, ok := validateImportRecord(rec); !ok {
			report.InvalidRecords = append(report.InvalidRecords, InvalidRecord{Record: rec, Reason: reason})
			continue
		}
		rec.Grade = math.Round(rec.Grade*10) / 10
		valid = append(valid, rec)
	}
	report.Stats.Invalid = len(report.InvalidRecords)
	if len(valid) == 0 {
		return report, nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return report, ErrClosed
	}
	e.mu.Unlock()

	stats, err := e.store.ImportGrades(ctx, e.sectionSN, valid)
	if err != nil {
		return report, pkgerrors.Wrap(err, "importing grades")
	}
	report.Stats.Success = stats.Success
	report.Stats.Failed = stats.Failed
	report.Stats.Invalid += stats.Invalid

	// resync with server truth; imported values become the new baseline.
	if err := e.Reload(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func validateImportRecord(rec ImportRecord) (reason string, ok bool) {
	if strings.TrimSpace(rec.StudentNo) == "" {
		return "missing student no", false
	}
	if math.IsNaN(rec.Grade) || math.IsInf(rec.Grade, 0) {
		return "grade is not a finite number", false
	}
	if rec.Grade < 0 || rec.Grade > 100 {
		return errGradeRange.Error(), false
	}
	return "", true
}

// ReadImportFile parses an xlsx grade sheet into import records. The first
// sheet is read; a header row is skipped when its grade cell is not numeric.
// Expected columns: student no, grade (extra columns are ignored).
func ReadImportFile(r io.Reader) ([]ImportRecord, []InvalidRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "opening grade sheet")
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, pkgerrors.New("grade sheet has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "reading grade sheet")
	}

	var (
		records []ImportRecord
		invalid []InvalidRecord
	)
	for i, cells := range rows {
		if len(cells) == 0 || strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		var no, grade string
		no = strings.TrimSpace(cells[0])
		if len(cells) > 1 {
			grade = strings.TrimSpace(cells[1])
		}
		v, err := strconv.ParseFloat(grade, 64)
		if err != nil {
			if i == 0 { // header row
				continue
			}
			invalid = append(invalid, InvalidRecord{
				Record: ImportRecord{StudentNo: no},
				Reason: fmt.Sprintf("row %d: grade %q is not a number", i+1, grade),
			})
			continue
		}
		records = append(records, ImportRecord{StudentNo: no, Grade: v})
	}
	return records, invalid, nil
}
