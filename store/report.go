package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// reportColumns is the column list shared by the SQL report queries.
const reportColumns = `id, name, description, view_name, filter_params, visibility,
	created_by, allowed_groups, is_active, created_at, updated_at`

// encodeReport returns the JSON columns of a report.
func encodeReport(report *Report) (params, groups []byte, err error) {
	filterParams := report.FilterParams
	if filterParams == nil {
		filterParams = map[string]string{}
	}
	params, err = json.Marshal(filterParams)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode filter params: %w", err)
	}

	allowedGroups := report.AllowedGroups
	if allowedGroups == nil {
		allowedGroups = []string{}
	}
	groups, err = json.Marshal(allowedGroups)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode allowed groups: %w", err)
	}
	return params, groups, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReport scans one row selected with reportColumns.
func scanReport(row rowScanner) (*Report, error) {
	var (
		report Report
		params []byte
		groups []byte
	)
	err := row.Scan(
		&report.ID,
		&report.Name,
		&report.Description,
		&report.ViewName,
		&params,
		&report.Visibility,
		&report.CreatedBy,
		&groups,
		&report.Active,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &report.FilterParams); err != nil {
		return nil, fmt.Errorf("failed to decode filter params of report %d: %w", report.ID, err)
	}
	if err := json.Unmarshal(groups, &report.AllowedGroups); err != nil {
		return nil, fmt.Errorf("failed to decode allowed groups of report %d: %w", report.ID, err)
	}
	return &report, nil
}

// scanReports collects every report from rows.
func scanReports(rows *sql.Rows) ([]*Report, error) {
	var reports []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// scanIDs collects a single integer column from rows.
func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}

func cloneReport(report *Report) *Report {
	out := *report
	out.FilterParams = maps.Clone(report.FilterParams)
	out.AllowedGroups = slices.Clone(report.AllowedGroups)
	return &out
}
