package report

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type (
	// GradeRecord is one line of the flat grade list.
	GradeRecord struct {
		StudentSN   int          `json:"stu_sn"`
		CourseSN    int          `json:"cou_sn"`
		StudentName string       `json:"stu_name"`
		CourseName  string       `json:"cou_name"`
		Grade       null.Float64 `json:"grade"`
	}

	// Store is the RecordStore surface reporting depends on.
	Store interface {
		ListGrades(ctx context.Context) ([]GradeRecord, error)
	}

	// Transcript groups one student's course grades.
	Transcript struct {
		StudentSN   int
		StudentName string
		Lines       []GradeRecord
		Average     null.Float64 // over entered grades only
	}

	Service struct {
		store   Store
		mailSvc core.EmailService
	}
)

func NewService(store Store, mailSvc core.EmailService) *Service {
	return &Service{store: store, mailSvc: mailSvc}
}

// Build fetches the grade list and groups it into per-student transcripts,
// ordered by student sn.
func (svc *Service) Build(ctx context.Context) ([]Transcript, error) {
	records, err := svc.store.ListGrades(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading grade list")
	}

	byStudent := make(map[int]*Transcript)
	for _, rec := range records {
		tr, ok := byStudent[rec.StudentSN]
		if !ok {
			tr = &Transcript{StudentSN: rec.StudentSN, StudentName: rec.StudentName}
			byStudent[rec.StudentSN] = tr
		}
		tr.Lines = append(tr.Lines, rec)
	}

	out := make([]Transcript, 0, len(byStudent))
	for _, tr := range byStudent {
		sort.Slice(tr.Lines, func(i, j int) bool { return tr.Lines[i].CourseSN < tr.Lines[j].CourseSN })
		tr.Average = average(tr.Lines)
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentSN < out[j].StudentSN })
	return out, nil
}

func average(lines []GradeRecord) null.Float64 {
	var (
		sum float64
		n   int
	)
	for _, l := range lines {
		if l.Grade.Valid {
			sum += l.Grade.Float64
			n++
		}
	}
	if n == 0 {
		return null.Float64{}
	}
	return null.Float64From(sum / float64(n))
}

// RenderText renders transcripts as a plain-text report body.
func RenderText(transcripts []Transcript) string {
	b := new(strings.Builder)
	for _, tr := range transcripts {
		fmt.Fprintf(b, "%s (#%d)\n", tr.StudentName, tr.StudentSN)
		for _, l := range tr.Lines {
			fmt.Fprintf(b, "  %-30s %s\n", l.CourseName, formatGrade(l.Grade))
		}
		fmt.Fprintf(b, "  %-30s %s\n\n", "average", formatGrade(tr.Average))
	}
	return b.String()
}

func formatGrade(g null.Float64) string {
	if !g.Valid {
		return "-"
	}
	return fmt.Sprintf("%.1f", g.Float64)
}

// BuildWorkbook renders transcripts as an xlsx workbook.
func BuildWorkbook(transcripts []Transcript) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []interface{}{"stu_sn", "stu_name", "cou_name", "grade"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, pkgerrors.Wrap(err, "writing report header")
	}
	rowN := 2
	for _, tr := range transcripts {
		for _, l := range tr.Lines {
			row := []interface{}{tr.StudentSN, tr.StudentName, l.CourseName, gradeCell(l.Grade)}
			cell := fmt.Sprintf("A%d", rowN)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, pkgerrors.Wrap(err, "writing report row")
			}
			rowN++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "serializing report workbook")
	}
	return buf, nil
}

func gradeCell(g null.Float64) interface{} {
	if !g.Valid {
		return ""
	}
	return g.Float64
}

// Email builds the report and sends it to the given recipients with the
// workbook attached.
func (svc *Service) Email(ctx context.Context, to ...mail.Address) error {
	transcripts, err := svc.Build(ctx)
	if err != nil {
		return err
	}
	wb, err := BuildWorkbook(transcripts)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      to,
		Subject: "Grade report",
		BodyStr: RenderText(transcripts),
		Attachments: []core.Attachment{{
			Content:     wb,
			ContentType: xlsxContentType,
			Filename:    "grade-report.xlsx",
		}},
	})
	return nil
}
