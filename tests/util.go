package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/services/recordstore/dummy"
)

func OpenDB(t *testing.T) *dummystore.DB {
	t.Helper()
	db, err := dummystore.Open()
	if err != nil {
		t.Fatalf("dummystore.Open() failed: %v", err)
	}
	return db
}

func CreateStudent(t *testing.T, db *dummystore.DB, no, name string) registry.Student {
	t.Helper()
	stu, err := db.CreateStudent(context.Background(), registry.Student{No: no, Name: name, Gender: "F"})
	if err != nil {
		t.Fatalf("CreateStudent(%s) failed: %v", no, err)
	}
	return stu
}

func CreateCourse(t *testing.T, db *dummystore.DB, no, name string) registry.Course {
	t.Helper()
	cou, err := db.CreateCourse(context.Background(), registry.Course{No: no, Name: name})
	if err != nil {
		t.Fatalf("CreateCourse(%s) failed: %v", no, err)
	}
	return cou
}

func CreateSection(t *testing.T, db *dummystore.DB, courseSN int, classNo, name string) registry.ClassSection {
	t.Helper()
	cls, err := db.CreateSection(context.Background(), registry.ClassSection{
		ClassNo:  classNo,
		Name:     name,
		Semester: "2026-1",
		CourseSN: courseSN,
	})
	if err != nil {
		t.Fatalf("CreateSection(%s) failed: %v", classNo, err)
	}
	return cls
}

// SeedSection creates a course, one section and n students, returning the
// section and the students in creation order. Students are NOT linked.
func SeedSection(t *testing.T, db *dummystore.DB, n int) (registry.ClassSection, []registry.Student) {
	t.Helper()
	cou := CreateCourse(t, db, "30001", "Data Structures")
	cls := CreateSection(t, db, cou.SN, "30001-2026", "Data Structures A")
	students := make([]registry.Student, 0, n)
	for i := 0; i < n; i++ {
		no := fmt.Sprintf("10%02d", i+1)
		students = append(students, CreateStudent(t, db, no, "Student "+no))
	}
	return cls, students
}
