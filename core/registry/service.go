package registry

import (
	"context"
	"errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrSectionNotFound = errors.New("class section not found")
	ErrCourseMismatch  = errors.New("class no course prefix does not match the linked course")
	ErrDuplicateNo     = errors.New("no already in use")
)

type (
	// Store is the RecordStore surface the registry depends on.
	Store interface {
		ListStudents(ctx context.Context, page, pageSize int) ([]Student, int, error)
		GetStudent(ctx context.Context, sn int) (Student, error)
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		UpdateStudent(ctx context.Context, stu Student) error
		DeleteStudent(ctx context.Context, sn int) error

		ListCourses(ctx context.Context, page, pageSize int) ([]Course, int, error)
		GetCourse(ctx context.Context, sn int) (Course, error)
		CreateCourse(ctx context.Context, cou Course) (Course, error)
		UpdateCourse(ctx context.Context, cou Course) error
		DeleteCourse(ctx context.Context, sn int) error

		ListSections(ctx context.Context) ([]ClassSection, error)
		GetSection(ctx context.Context, sn int) (ClassSection, error)
		CreateSection(ctx context.Context, cls ClassSection) (ClassSection, error)
		UpdateSection(ctx context.Context, cls ClassSection) error
		DeleteSection(ctx context.Context, sn int) error
	}

	Service struct {
		store Store
	}
)

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (svc *Service) ListStudents(ctx context.Context, page, pageSize int) ([]Student, int, error) {
	return svc.store.ListStudents(ctx, page, pageSize)
}

// AllStudents pages through the full student pool.
func (svc *Service) AllStudents(ctx context.Context, pageSize int) ([]Student, error) {
	if pageSize <= 0 {
		pageSize = core.Conf.GetInt("roster.pageSize")
	}
	var all []Student
	for page := 1; ; page++ {
		students, total, err := svc.store.ListStudents(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, students...)
		if len(students) < pageSize || len(all) >= total {
			return all, nil
		}
	}
}

func (svc *Service) GetStudent(ctx context.Context, sn int) (Student, error) {
	return svc.store.GetStudent(ctx, sn)
}

func (svc *Service) CreateStudent(ctx context.Context, stu Student) (Student, error) {
	stu.No = core.CleanString(stu.No)
	stu.Name = core.CleanString(stu.Name)
	if err := core.TranslateValidationError(core.Validate.Struct(stu)); err != nil {
		return Student{}, err
	}
	return svc.store.CreateStudent(ctx, stu)
}

func (svc *Service) UpdateStudent(ctx context.Context, stu Student) error {
	stu.No = core.CleanString(stu.No)
	stu.Name = core.CleanString(stu.Name)
	if err := core.TranslateValidationError(core.Validate.Struct(stu)); err != nil {
		return err
	}
	return svc.store.UpdateStudent(ctx, stu)
}

func (svc *Service) DeleteStudent(ctx context.Context, sn int) error {
	return svc.store.DeleteStudent(ctx, sn)
}

func (svc *Service) ListCourses(ctx context.Context, page, pageSize int) ([]Course, int, error) {
	return svc.store.ListCourses(ctx, page, pageSize)
}

func (svc *Service) GetCourse(ctx context.Context, sn int) (Course, error) {
	return svc.store.GetCourse(ctx, sn)
}

func (svc *Service) CreateCourse(ctx context.Context, cou Course) (Course, error) {
	cou.No = core.CleanString(cou.No)
	cou.Name = core.CleanString(cou.Name)
	if err := core.TranslateValidationError(core.Validate.Struct(cou)); err != nil {
		return Course{}, err
	}
	return svc.store.CreateCourse(ctx, cou)
}

func (svc *Service) UpdateCourse(ctx context.Context, cou Course) error {
	cou.No = core.CleanString(cou.No)
	cou.Name = core.CleanString(cou.Name)
	if err := core.TranslateValidationError(core.Validate.Struct(cou)); err != nil {
		return err
	}
	return svc.store.UpdateCourse(ctx, cou)
}

func (svc *Service) DeleteCourse(ctx context.Context, sn int) error {
	return svc.store.DeleteCourse(ctx, sn)
}

func (svc *Service) ListSections(ctx context.Context) ([]ClassSection, error) {
	return svc.store.ListSections(ctx)
}

func (svc *Service) GetSection(ctx context.Context, sn int) (ClassSection, error) {
	return svc.store.GetSection(ctx, sn)
}

func (svc *Service) CreateSection(ctx context.Context, cls ClassSection) (ClassSection, error) {
	if err := svc.checkSection(ctx, &cls); err != nil {
		return ClassSection{}, err
	}
	return svc.store.CreateSection(ctx, cls)
}

func (svc *Service) UpdateSection(ctx context.Context, cls ClassSection) error {
	if err := svc.checkSection(ctx, &cls); err != nil {
		return err
	}
	return svc.store.UpdateSection(ctx, cls)
}

func (svc *Service) DeleteSection(ctx context.Context, sn int) error {
	return svc.store.DeleteSection(ctx, sn)
}

// checkSection validates the section record and makes sure its class no
// carries the linked course's no as prefix.
func (svc *Service) checkSection(ctx context.Context, cls *ClassSection) error {
	cls.ClassNo = core.CleanString(cls.ClassNo)
	cls.Name = core.CleanString(cls.Name)
	if err := core.TranslateValidationError(core.Validate.Struct(cls)); err != nil {
		return err
	}
	cou, err := svc.store.GetCourse(ctx, cls.CourseSN)
	if err != nil {
		return err
	}
	if CourseNoOfClassNo(cls.ClassNo) != cou.No {
		return core.NewValidationError(ErrCourseMismatch,
			core.FieldError{Field: "class_no", Error: ErrCourseMismatch.Error()})
	}
	return nil
}
