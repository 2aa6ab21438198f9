package recordstore

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/grades"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/core/report"
)

var (
	_ grades.Store = (*Client)(nil)
	_ report.Store = (*Client)(nil)
)

// LoadBoard composes the version token and the roster-with-grades fetch. The
// token is read first: a remote write between the two calls then surfaces as
// a version mismatch on the next poll instead of going unnoticed.
func (c *Client) LoadBoard(ctx context.Context, sectionSN int) ([]grades.BoardRow, string, error) {
	version, err := c.CheckVersion(ctx, sectionSN)
	if err != nil {
		return nil, "", err
	}
	data, err := c.do(ctx, "GET", fmt.Sprintf("/api/class/%d/students-with-grades", sectionSN), nil, nil)
	if err != nil {
		return nil, "", err
	}
	var rows []grades.BoardRow
	if _, err := unmarshalList(data, &rows); err != nil {
		return nil, "", err
	}
	return rows, version, nil
}

func (c *Client) CommitGrades(ctx context.Context, sectionSN int, entries []grades.GradeEntry) (int, error) {
	for i := range entries {
		entries[i].SectionSN = sectionSN
	}
	body := struct {
		Grades []grades.GradeEntry `json:"grades"`
	}{Grades: entries}

	var resp struct {
		Updated int `json:"updated"`
	}
	if err := c.doJSON(ctx, "POST", "/api/grade/batch", nil, body, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *Client) CheckVersion(ctx context.Context, sectionSN int) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/grade/check-conflict/%d", sectionSN), nil, nil, &resp)
	return resp.Version, notFound(err, registry.ErrSectionNotFound)
}

func (c *Client) ImportGrades(ctx context.Context, sectionSN int, records []grades.ImportRecord) (grades.ImportStats, error) {
	body := struct {
		SectionSN int                   `json:"class_sn"`
		Records   []grades.ImportRecord `json:"records"`
	}{SectionSN: sectionSN, Records: records}

	var resp struct {
		Stats grades.ImportStats `json:"stats"`
	}
	if err := c.doJSON(ctx, "POST", "/api/grade/import", nil, body, &resp); err != nil {
		return grades.ImportStats{}, err
	}
	return resp.Stats, nil
}

func (c *Client) ListGrades(ctx context.Context) ([]report.GradeRecord, error) {
	data, err := c.do(ctx, "GET", "/api/grade/list", nil, nil)
	if err != nil {
		return nil, err
	}
	var records []report.GradeRecord
	if _, err := unmarshalList(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
