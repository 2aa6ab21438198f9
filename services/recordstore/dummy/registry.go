package dummystore

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/registry"
)

var _ registry.Store = (*DB)(nil)

// Students

func (db *DB) ListStudents(_ context.Context, page, pageSize int) ([]registry.Student, int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	all := make([]registry.Student, 0, len(db.students))
	for _, stu := range db.students {
		all = append(all, stu)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].No < all[j].No })
	return pageOf(all, page, pageSize), len(all), nil
}

func pageOf(all []registry.Student, page, pageSize int) []registry.Student {
	if page < 1 || pageSize < 1 {
		return all
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (db *DB) GetStudent(_ context.Context, sn int) (registry.Student, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	stu, ok := db.students[sn]
	if !ok {
		return registry.Student{}, registry.ErrStudentNotFound
	}
	return stu, nil
}

func (db *DB) CreateStudent(_ context.Context, stu registry.Student) (registry.Student, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, other := range db.students {
		if other.No == stu.No {
			return registry.Student{}, registry.ErrDuplicateNo
		}
	}
	stu.SN = db.nextSNLocked()
	db.students[stu.SN] = stu
	return stu, nil
}

func (db *DB) UpdateStudent(_ context.Context, stu registry.Student) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.students[stu.SN]; !ok {
		return registry.ErrStudentNotFound
	}
	db.students[stu.SN] = stu
	return nil
}

func (db *DB) DeleteStudent(_ context.Context, sn int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.students[sn]; !ok {
		return registry.ErrStudentNotFound
	}
	delete(db.students, sn)
	for sectionSN, roster := range db.links {
		if roster.Has(sn) {
			roster.Remove(sn)
			delete(db.gradesLocked(sectionSN), sn)
			db.bumpVersionLocked(sectionSN)
		}
	}
	return nil
}

// Courses

func (db *DB) ListCourses(_ context.Context, page, pageSize int) ([]registry.Course, int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	all := make([]registry.Course, 0, len(db.courses))
	for _, cou := range db.courses {
		all = append(all, cou)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].No < all[j].No })
	// no paging in the dummy beyond bounds safety
	if page > 1 && (page-1)*pageSize >= len(all) {
		return nil, len(all), nil
	}
	return all, len(all), nil
}

func (db *DB) GetCourse(_ context.Context, sn int) (registry.Course, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	cou, ok := db.courses[sn]
	if !ok {
		return registry.Course{}, registry.ErrCourseNotFound
	}
	return cou, nil
}

func (db *DB) CreateCourse(_ context.Context, cou registry.Course) (registry.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, other := range db.courses {
		if other.No == cou.No {
			return registry.Course{}, registry.ErrDuplicateNo
		}
	}
	cou.SN = db.nextSNLocked()
	db.courses[cou.SN] = cou
	return cou, nil
}

func (db *DB) UpdateCourse(_ context.Context, cou registry.Course) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.courses[cou.SN]; !ok {
		return registry.ErrCourseNotFound
	}
	db.courses[cou.SN] = cou
	return nil
}

func (db *DB) DeleteCourse(_ context.Context, sn int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.courses[sn]; !ok {
		return registry.ErrCourseNotFound
	}
	delete(db.courses, sn)
	return nil
}

// Class sections

func (db *DB) ListSections(_ context.Context) ([]registry.ClassSection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	all := make([]registry.ClassSection, 0, len(db.sections))
	for _, cls := range db.sections {
		all = append(all, cls)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ClassNo < all[j].ClassNo })
	return all, nil
}

func (db *DB) GetSection(_ context.Context, sn int) (registry.ClassSection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	cls, ok := db.sections[sn]
	if !ok {
		return registry.ClassSection{}, registry.ErrSectionNotFound
	}
	return cls, nil
}

func (db *DB) CreateSection(_ context.Context, cls registry.ClassSection) (registry.ClassSection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.courses[cls.CourseSN]; !ok {
		return registry.ClassSection{}, registry.ErrCourseNotFound
	}
	for _, other := range db.sections {
		if other.ClassNo == cls.ClassNo {
			return registry.ClassSection{}, registry.ErrDuplicateNo
		}
	}
	cls.SN = db.nextSNLocked()
	db.sections[cls.SN] = cls
	return cls, nil
}

func (db *DB) UpdateSection(_ context.Context, cls registry.ClassSection) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sections[cls.SN]; !ok {
		return registry.ErrSectionNotFound
	}
	db.sections[cls.SN] = cls
	return nil
}

func (db *DB) DeleteSection(_ context.Context, sn int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sections[sn]; !ok {
		return registry.ErrSectionNotFound
	}
	delete(db.sections, sn)
	delete(db.links, sn)
	delete(db.grades, sn)
	return nil
}
