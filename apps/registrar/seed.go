package main

import (
	"context"

	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/services/recordstore/dummy"
)

// seedDemo fills the in-memory store with a small dataset so every
// subcommand has something to chew on.
func seedDemo(db *dummystore.DB) error {
	ctx := context.Background()
	reg := registry.NewService(db)

	students := []registry.Student{
		{No: "1001", Name: "Amina Kazadi", Gender: "F"},
		{No: "1002", Name: "Jean Ilunga", Gender: "M"},
		{No: "1003", Name: "Grace Mwamba", Gender: "F"},
		{No: "1004", Name: "Patrick Tshibangu", Gender: "M"},
	}
	for _, stu := range students {
		if _, err := reg.CreateStudent(ctx, stu); err != nil {
			return err
		}
	}

	cou, err := reg.CreateCourse(ctx, registry.Course{No: "30001", Name: "Data Structures"})
	if err != nil {
		return err
	}
	sections := []registry.ClassSection{
		{ClassNo: "30001-2026", Name: "Data Structures A", Semester: "2026-1", CourseSN: cou.SN},
		{ClassNo: "30001-2027", Name: "Data Structures B", Semester: "2026-1", CourseSN: cou.SN},
	}
	for _, cls := range sections {
		if _, err := reg.CreateSection(ctx, cls); err != nil {
			return err
		}
	}
	return nil
}
