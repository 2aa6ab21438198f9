package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrSessionExpired is returned by the RecordStore client when the server
// rejects the bearer credential; the operator must re-authenticate.
var ErrSessionExpired = errors.New("session expired, please log in again")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ConflictingStudent describes a student that cannot be linked to a section
// because another section of the same course already holds them.
type ConflictingStudent struct {
	StudentSN   int    `json:"stu_sn"`
	StudentNo   string `json:"stu_no"`
	StudentName string `json:"stu_name"`
	ClassNo     string `json:"class_no"`
}

func (c ConflictingStudent) String() string {
	if c.ClassNo == "" {
		return fmt.Sprintf("%s(%s)", c.StudentName, c.StudentNo)
	}
	return fmt.Sprintf("%s(%s) already in %s", c.StudentName, c.StudentNo, c.ClassNo)
}

// ConflictError reports students whose cross-section uniqueness constraint
// would be violated. It may originate locally (known conflicts selected) or
// from the server (race with another operator).
type ConflictError struct {
	Students []ConflictingStudent
}

func NewConflictError(students ...ConflictingStudent) error {
	return &ConflictError{Students: students}
}

func (err ConflictError) Error() string {
	if len(err.Students) == 0 {
		return "conflicting students"
	}
	descs := make([]string, 0, len(err.Students))
	for _, s := range err.Students {
		descs = append(descs, s.String())
	}
	return "conflicting students: " + strings.Join(descs, "; ")
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
