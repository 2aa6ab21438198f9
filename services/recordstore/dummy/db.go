// Package dummystore is an in-memory RecordStore with the server's conflict
// and versioning semantics. It backs engine tests and the CLI demo mode.
package dummystore

import (
	"strconv"
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/registry"
)

type DB struct {
	mu sync.RWMutex

	students map[int]registry.Student
	courses  map[int]registry.Course
	sections map[int]registry.ClassSection
	links    map[int]registry.StudentSet       // sectionSN -> roster
	grades   map[int]map[int]null.Float64      // sectionSN -> stuSN -> grade
	versions map[int]int                       // sectionSN -> version counter
	nextSN   int
}

func Open() (*DB, error) {
	return &DB{
		students: make(map[int]registry.Student),
		courses:  make(map[int]registry.Course),
		sections: make(map[int]registry.ClassSection),
		links:    make(map[int]registry.StudentSet),
		grades:   make(map[int]map[int]null.Float64),
		versions: make(map[int]int),
		nextSN:   1,
	}, nil
}

func (db *DB) nextSNLocked() int {
	sn := db.nextSN
	db.nextSN++
	return sn
}

// bumpVersionLocked marks a section's grade board as changed.
func (db *DB) bumpVersionLocked(sectionSN int) {
	db.versions[sectionSN]++
}

func (db *DB) versionLocked(sectionSN int) string {
	return "v" + strconv.Itoa(db.versions[sectionSN])
}

// rosterLocked returns (creating if needed) a section's roster set.
func (db *DB) rosterLocked(sectionSN int) registry.StudentSet {
	set, ok := db.links[sectionSN]
	if !ok {
		set = make(registry.StudentSet)
		db.links[sectionSN] = set
	}
	return set
}

func (db *DB) gradesLocked(sectionSN int) map[int]null.Float64 {
	m, ok := db.grades[sectionSN]
	if !ok {
		m = make(map[int]null.Float64)
		db.grades[sectionSN] = m
	}
	return m
}

// SetGrade force-sets a grade, bypassing the API surface. Tests use it to
// simulate a concurrent operator.
func (db *DB) SetGrade(sectionSN, studentSN int, grade null.Float64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.gradesLocked(sectionSN)[studentSN] = grade
	db.bumpVersionLocked(sectionSN)
}

// LinkStudent force-links a student to a section, bypassing conflict checks.
func (db *DB) LinkStudent(sectionSN, studentSN int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rosterLocked(sectionSN).Add(studentSN)
	db.bumpVersionLocked(sectionSN)
}
