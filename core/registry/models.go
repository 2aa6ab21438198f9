package registry

import (
	"sort"

	"github.com/volatiletech/null/v8"
)

type (
	// Student is a student record as served by the RecordStore.
	Student struct {
		SN       int       `json:"stu_sn"`
		No       string    `json:"stu_no" validate:"required,len=4,number"`
		Name     string    `json:"stu_name" validate:"required"`
		Gender   string    `json:"gender" validate:"omitempty,oneof=M F"`
		Enrolled null.Time `json:"enrolled"`
	}

	// Course is a course record; many sections may be scheduled per course.
	Course struct {
		SN     int          `json:"course_sn"`
		No     string       `json:"course_no" validate:"required,len=5,number"`
		Name   string       `json:"course_name" validate:"required"`
		Credit null.Float64 `json:"credit"`
		Hours  null.Int     `json:"hours"`
	}

	// ClassSection is one scheduled offering of a Course with its own roster.
	ClassSection struct {
		SN       int    `json:"class_sn"`
		ClassNo  string `json:"class_no" validate:"required,class_no"`
		Name     string `json:"name"`
		Semester string `json:"semester"`
		Location string `json:"location"`
		CourseSN int    `json:"course_sn" validate:"required"`
	}
)

// StudentSet is the membership set the roster engines diff against.
type StudentSet map[int]struct{}

func NewStudentSet(sns ...int) StudentSet {
	s := make(StudentSet, len(sns))
	for _, sn := range sns {
		s[sn] = struct{}{}
	}
	return s
}

func (s StudentSet) Has(sn int) bool {
	_, ok := s[sn]
	return ok
}

func (s StudentSet) Add(sn int)    { s[sn] = struct{}{} }
func (s StudentSet) Remove(sn int) { delete(s, sn) }
func (s StudentSet) Len() int      { return len(s) }

// Clone returns an independent copy of the set.
func (s StudentSet) Clone() StudentSet {
	c := make(StudentSet, len(s))
	for sn := range s {
		c[sn] = struct{}{}
	}
	return c
}

// Minus returns the members of s absent from other, sorted ascending.
func (s StudentSet) Minus(other StudentSet) []int {
	diff := make([]int, 0)
	for sn := range s {
		if !other.Has(sn) {
			diff = append(diff, sn)
		}
	}
	sort.Ints(diff)
	return diff
}

// Equal reports whether both sets hold exactly the same members.
func (s StudentSet) Equal(other StudentSet) bool {
	if len(s) != len(other) {
		return false
	}
	for sn := range s {
		if !other.Has(sn) {
			return false
		}
	}
	return true
}

// SNs returns the members sorted ascending.
func (s StudentSet) SNs() []int {
	sns := make([]int, 0, len(s))
	for sn := range s {
		sns = append(sns, sn)
	}
	sort.Ints(sns)
	return sns
}
