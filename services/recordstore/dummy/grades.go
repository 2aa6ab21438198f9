package dummystore

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/grades"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/core/report"
)

var (
	_ grades.Store = (*DB)(nil)
	_ report.Store = (*DB)(nil)
)

func (db *DB) LoadBoard(_ context.Context, sectionSN int) ([]grades.BoardRow, string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if _, ok := db.sections[sectionSN]; !ok {
		return nil, "", registry.ErrSectionNotFound
	}
	board := db.grades[sectionSN]
	var rows []grades.BoardRow
	for _, stu := range db.sectionStudentsLocked(sectionSN) {
		rows = append(rows, grades.BoardRow{
			StudentSN:   stu.SN,
			StudentNo:   stu.No,
			StudentName: stu.Name,
			Grade:       board[stu.SN],
		})
	}
	return rows, db.versionLocked(sectionSN), nil
}

func (db *DB) CommitGrades(_ context.Context, sectionSN int, entries []grades.GradeEntry) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sections[sectionSN]; !ok {
		return 0, registry.ErrSectionNotFound
	}
	roster := db.rosterLocked(sectionSN)
	board := db.gradesLocked(sectionSN)
	var updated int
	for _, entry := range entries {
		if !roster.Has(entry.StudentSN) {
			continue
		}
		board[entry.StudentSN] = entry.Grade
		updated++
	}
	if updated > 0 {
		db.bumpVersionLocked(sectionSN)
	}
	return updated, nil
}

func (db *DB) CheckVersion(_ context.Context, sectionSN int) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if _, ok := db.sections[sectionSN]; !ok {
		return "", registry.ErrSectionNotFound
	}
	return db.versionLocked(sectionSN), nil
}

func (db *DB) ImportGrades(_ context.Context, sectionSN int, records []grades.ImportRecord) (grades.ImportStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sections[sectionSN]; !ok {
		return grades.ImportStats{}, registry.ErrSectionNotFound
	}

	byNo := make(map[string]int) // stu_no -> sn, roster students only
	for sn := range db.rosterLocked(sectionSN) {
		if stu, ok := db.students[sn]; ok {
			byNo[stu.No] = sn
		}
	}

	board := db.gradesLocked(sectionSN)
	var stats grades.ImportStats
	for _, rec := range records {
		if rec.Grade < 0 || rec.Grade > 100 {
			stats.Invalid++
			continue
		}
		sn, ok := byNo[rec.StudentNo]
		if !ok {
			stats.Failed++
			continue
		}
		board[sn] = null.Float64From(rec.Grade)
		stats.Success++
	}
	if stats.Success > 0 {
		db.bumpVersionLocked(sectionSN)
	}
	return stats, nil
}

func (db *DB) ListGrades(_ context.Context) ([]report.GradeRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []report.GradeRecord
	for sectionSN, board := range db.grades {
		cls, ok := db.sections[sectionSN]
		if !ok {
			continue
		}
		cou := db.courses[cls.CourseSN]
		for stuSN, grade := range board {
			stu, ok := db.students[stuSN]
			if !ok {
				continue
			}
			out = append(out, report.GradeRecord{
				StudentSN:   stuSN,
				CourseSN:    cls.CourseSN,
				StudentName: stu.Name,
				CourseName:  cou.Name,
				Grade:       grade,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentSN != out[j].StudentSN {
			return out[i].StudentSN < out[j].StudentSN
		}
		return out[i].CourseSN < out[j].CourseSN
	})
	return out, nil
}
