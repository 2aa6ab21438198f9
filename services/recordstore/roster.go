package recordstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/core/roster"
)

var _ roster.Store = (*Client)(nil)

func (c *Client) ListSectionStudents(ctx context.Context, sectionSN int) ([]registry.Student, error) {
	data, err := c.do(ctx, "GET", fmt.Sprintf("/api/class/%d/students", sectionSN), nil, nil)
	if err != nil {
		return nil, err
	}
	// some deployments answer a bare array, others {data: [...]}.
	var students []registry.Student
	if _, err := unmarshalList(data, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (c *Client) CheckSectionConflicts(ctx context.Context, sectionSN int, studentSNs []int) ([]core.ConflictingStudent, error) {
	if len(studentSNs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, sn := range studentSNs {
		q.Add("student_sns", strconv.Itoa(sn))
	}
	data, err := c.do(ctx, "GET", fmt.Sprintf("/api/class/%d/students/conflicts", sectionSN), q, nil)
	if err != nil {
		return nil, err
	}
	var conflicts []core.ConflictingStudent
	if _, err := unmarshalList(data, &conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (c *Client) ReplaceSectionStudents(ctx context.Context, sectionSN int, studentSNs []int) (roster.ReplaceResult, error) {
	if studentSNs == nil {
		studentSNs = []int{} // the server wants an explicit full set
	}
	body := struct {
		StudentSNs []int `json:"student_sns"`
	}{StudentSNs: studentSNs}

	var resp roster.ReplaceResult
	err := c.doJSON(ctx, "PUT", fmt.Sprintf("/api/class/%d/students", sectionSN), nil, body, &resp)
	return resp, notFound(err, registry.ErrSectionNotFound)
}
