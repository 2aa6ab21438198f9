package registry

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	classNoTag  = "class_no"
	classNoText = "class no must be of the form COURSE-YEAR (5 digit course no, 4 digit year; e.g. 10055-2023)"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(classNoTag, classNoValidation)
	core.RegisterCustomTranslation(classNoTag, classNoText)
}

// classNoValidation checks the "NNNNN-YYYY" section number format.
func classNoValidation(fl validator.FieldLevel) bool {
	courseNo, year, ok := splitClassNo(fl.Field().String())
	if !ok {
		return false
	}
	return allDigits(courseNo) && len(courseNo) == 5 && allDigits(year) && len(year) == 4
}

// CourseNoOfClassNo extracts the course-no prefix of a section number.
func CourseNoOfClassNo(classNo string) string {
	courseNo, _, _ := splitClassNo(classNo)
	return courseNo
}

func splitClassNo(classNo string) (courseNo, year string, ok bool) {
	parts := strings.Split(classNo, "-")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
