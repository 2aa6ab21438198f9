package dummystore

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/core/roster"
)

var _ roster.Store = (*DB)(nil)

func (db *DB) ListSectionStudents(_ context.Context, sectionSN int) ([]registry.Student, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if _, ok := db.sections[sectionSN]; !ok {
		return nil, registry.ErrSectionNotFound
	}
	return db.sectionStudentsLocked(sectionSN), nil
}

func (db *DB) sectionStudentsLocked(sectionSN int) []registry.Student {
	var out []registry.Student
	for sn := range db.links[sectionSN] {
		if stu, ok := db.students[sn]; ok {
			out = append(out, stu)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out
}

// CheckSectionConflicts reports which of the given students are linked to
// another section of the same course.
func (db *DB) CheckSectionConflicts(_ context.Context, sectionSN int, studentSNs []int) ([]core.ConflictingStudent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	cls, ok := db.sections[sectionSN]
	if !ok {
		return nil, registry.ErrSectionNotFound
	}
	return db.conflictsLocked(cls, studentSNs), nil
}

func (db *DB) conflictsLocked(cls registry.ClassSection, studentSNs []int) []core.ConflictingStudent {
	var out []core.ConflictingStudent
	for _, sn := range studentSNs {
		for otherSN, other := range db.sections {
			if otherSN == cls.SN || other.CourseSN != cls.CourseSN {
				continue
			}
			if db.links[otherSN].Has(sn) {
				stu := db.students[sn]
				out = append(out, core.ConflictingStudent{
					StudentSN:   sn,
					StudentNo:   stu.No,
					StudentName: stu.Name,
					ClassNo:     other.ClassNo,
				})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentSN < out[j].StudentSN })
	return out
}

// ReplaceSectionStudents diffs the desired set against the current roster and
// applies it. Conflicting additions are rejected and reported while the rest
// of the diff commits (partial accept; the client narrows to the accepted
// subset).
func (db *DB) ReplaceSectionStudents(_ context.Context, sectionSN int, studentSNs []int) (roster.ReplaceResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cls, ok := db.sections[sectionSN]
	if !ok {
		return roster.ReplaceResult{}, registry.ErrSectionNotFound
	}

	current := db.rosterLocked(sectionSN)
	desired := registry.NewStudentSet(studentSNs...)
	toAdd := desired.Minus(current)
	toRemove := current.Minus(desired)

	conflicts := db.conflictsLocked(cls, toAdd)
	conflicted := make(registry.StudentSet, len(conflicts))
	for _, c := range conflicts {
		conflicted.Add(c.StudentSN)
	}

	var added []int
	for _, sn := range toAdd {
		if conflicted.Has(sn) {
			continue
		}
		if _, ok := db.students[sn]; !ok {
			continue
		}
		current.Add(sn)
		added = append(added, sn)
	}
	for _, sn := range toRemove {
		current.Remove(sn)
		delete(db.gradesLocked(sectionSN), sn)
	}
	if len(added)+len(toRemove) > 0 {
		db.bumpVersionLocked(sectionSN)
	}

	return roster.ReplaceResult{
		Added:      added,
		Removed:    toRemove,
		TotalCount: current.Len(),
		Students:   db.sectionStudentsLocked(sectionSN),
		Conflicts:  conflicts,
	}, nil
}
