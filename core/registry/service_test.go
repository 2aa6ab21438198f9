package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/tests"
)

func TestService_CreateStudent(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := registry.NewService(db)
	ctx := context.Background()

	tests := []struct {
		name      string
		stu       registry.Student
		wantField string
	}{
		{name: "ok", stu: registry.Student{No: "1001", Name: "Amina Kazadi", Gender: "F"}},
		{name: "whitespace trimmed", stu: registry.Student{No: " 1002 ", Name: "  Jean Ilunga "}},
		{name: "no required", stu: registry.Student{Name: "Nameless"}, wantField: "stu_no"},
		{name: "no must be 4 chars", stu: registry.Student{No: "123", Name: "Short"}, wantField: "stu_no"},
		{name: "no must be digits", stu: registry.Student{No: "12ab", Name: "Alpha"}, wantField: "stu_no"},
		{name: "name required", stu: registry.Student{No: "1003"}, wantField: "stu_name"},
		{name: "bad gender", stu: registry.Student{No: "1004", Name: "X", Gender: "Z"}, wantField: "gender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stu, err := svc.CreateStudent(ctx, tt.stu)
			if tt.wantField != "" {
				assertFieldError(t, err, tt.wantField)
				return
			}
			if err != nil {
				t.Fatalf("CreateStudent() failed: %v", err)
			}
			if stu.SN == 0 {
				t.Error("CreateStudent() did not assign an SN")
			}
			if stu.No != core.CleanString(tt.stu.No) {
				t.Errorf("No = %q, want trimmed %q", stu.No, core.CleanString(tt.stu.No))
			}
		})
	}
}

func TestService_CreateSection(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := registry.NewService(db)
	ctx := context.Background()

	cou := testutil.CreateCourse(t, db, "30001", "Data Structures")

	tests := []struct {
		name      string
		cls       registry.ClassSection
		wantErr   error
		wantField string
	}{
		{name: "ok", cls: registry.ClassSection{ClassNo: "30001-2026", Name: "A", CourseSN: cou.SN}},
		{name: "bad format", cls: registry.ClassSection{ClassNo: "30001/2026", CourseSN: cou.SN}, wantField: "class_no"},
		{name: "short year", cls: registry.ClassSection{ClassNo: "30001-26", CourseSN: cou.SN}, wantField: "class_no"},
		{name: "course required", cls: registry.ClassSection{ClassNo: "30001-2026"}, wantField: "course_sn"},
		{name: "unknown course", cls: registry.ClassSection{ClassNo: "30001-2026", CourseSN: 999}, wantErr: registry.ErrCourseNotFound},
		{name: "prefix mismatch", cls: registry.ClassSection{ClassNo: "30002-2026", CourseSN: cou.SN}, wantField: "class_no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSection(ctx, tt.cls)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CreateSection() error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantField != "":
				assertFieldError(t, err, tt.wantField)
			default:
				if err != nil {
					t.Errorf("CreateSection() failed: %v", err)
				}
			}
		})
	}
}

func TestService_AllStudents(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := registry.NewService(db)
	ctx := context.Background()

	_, students := testutil.SeedSection(t, db, 7)

	all, err := svc.AllStudents(ctx, 3)
	if err != nil {
		t.Fatalf("AllStudents() failed: %v", err)
	}
	if len(all) != len(students) {
		t.Errorf("AllStudents() len = %d, want %d", len(all), len(students))
	}
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want ValidationError on %s", err, field)
	}
	for _, fe := range vErr.Fields {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("ValidationError fields = %+v, want one for %s", vErr.Fields, field)
}
