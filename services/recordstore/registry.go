package recordstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/trezcool/darasa/core/registry"
)

var _ registry.Store = (*Client)(nil)

func pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	return q
}

// Students

func (c *Client) ListStudents(ctx context.Context, page, pageSize int) ([]registry.Student, int, error) {
	data, err := c.do(ctx, "GET", "/api/student/list", pageQuery(page, pageSize), nil)
	if err != nil {
		return nil, 0, err
	}
	var students []registry.Student
	total, err := unmarshalList(data, &students)
	if err != nil {
		return nil, 0, err
	}
	if total < 0 { // bare array: no envelope total
		total = len(students)
	}
	return students, total, nil
}

func (c *Client) GetStudent(ctx context.Context, sn int) (registry.Student, error) {
	var stu registry.Student
	err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/student/%d", sn), nil, nil, &stu)
	return stu, notFound(err, registry.ErrStudentNotFound)
}

func (c *Client) CreateStudent(ctx context.Context, stu registry.Student) (registry.Student, error) {
	var created registry.Student
	err := c.doJSON(ctx, "POST", "/api/student", nil, stu, &created)
	return created, err
}

func (c *Client) UpdateStudent(ctx context.Context, stu registry.Student) error {
	err := c.doJSON(ctx, "PUT", fmt.Sprintf("/api/student/%d", stu.SN), nil, stu, nil)
	return notFound(err, registry.ErrStudentNotFound)
}

func (c *Client) DeleteStudent(ctx context.Context, sn int) error {
	err := c.doJSON(ctx, "DELETE", fmt.Sprintf("/api/student/%d", sn), nil, nil, nil)
	return notFound(err, registry.ErrStudentNotFound)
}

// Courses

func (c *Client) ListCourses(ctx context.Context, page, pageSize int) ([]registry.Course, int, error) {
	data, err := c.do(ctx, "GET", "/api/course/list", pageQuery(page, pageSize), nil)
	if err != nil {
		return nil, 0, err
	}
	var courses []registry.Course
	total, err := unmarshalList(data, &courses)
	if err != nil {
		return nil, 0, err
	}
	if total < 0 {
		total = len(courses)
	}
	return courses, total, nil
}

func (c *Client) GetCourse(ctx context.Context, sn int) (registry.Course, error) {
	var cou registry.Course
	err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/course/%d", sn), nil, nil, &cou)
	return cou, notFound(err, registry.ErrCourseNotFound)
}

func (c *Client) CreateCourse(ctx context.Context, cou registry.Course) (registry.Course, error) {
	var created registry.Course
	err := c.doJSON(ctx, "POST", "/api/course", nil, cou, &created)
	return created, err
}

func (c *Client) UpdateCourse(ctx context.Context, cou registry.Course) error {
	err := c.doJSON(ctx, "PUT", fmt.Sprintf("/api/course/%d", cou.SN), nil, cou, nil)
	return notFound(err, registry.ErrCourseNotFound)
}

func (c *Client) DeleteCourse(ctx context.Context, sn int) error {
	err := c.doJSON(ctx, "DELETE", fmt.Sprintf("/api/course/%d", sn), nil, nil, nil)
	return notFound(err, registry.ErrCourseNotFound)
}

// Class sections

func (c *Client) ListSections(ctx context.Context) ([]registry.ClassSection, error) {
	data, err := c.do(ctx, "GET", "/api/class/list", nil, nil)
	if err != nil {
		return nil, err
	}
	var sections []registry.ClassSection
	if _, err := unmarshalList(data, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (c *Client) GetSection(ctx context.Context, sn int) (registry.ClassSection, error) {
	var cls registry.ClassSection
	err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/class/%d", sn), nil, nil, &cls)
	return cls, notFound(err, registry.ErrSectionNotFound)
}

func (c *Client) CreateSection(ctx context.Context, cls registry.ClassSection) (registry.ClassSection, error) {
	var created registry.ClassSection
	err := c.doJSON(ctx, "POST", "/api/class", nil, cls, &created)
	return created, err
}

func (c *Client) UpdateSection(ctx context.Context, cls registry.ClassSection) error {
	err := c.doJSON(ctx, "PUT", fmt.Sprintf("/api/class/%d", cls.SN), nil, cls, nil)
	return notFound(err, registry.ErrSectionNotFound)
}

func (c *Client) DeleteSection(ctx context.Context, sn int) error {
	err := c.doJSON(ctx, "DELETE", fmt.Sprintf("/api/class/%d", sn), nil, nil, nil)
	return notFound(err, registry.ErrSectionNotFound)
}
