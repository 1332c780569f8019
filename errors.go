package tablenav

import "errors"

var (
	// ErrTokenExhausted is returned when no unused navigation token could be
	// generated. It points at a broken random source, not a runtime condition.
	ErrTokenExhausted = errors.New("tablenav: could not generate a unique navigation token")

	// ErrOwnerRequired is returned when an operation is called without an owner ID.
	ErrOwnerRequired = errors.New("tablenav: owner ID is required")

	// ErrReportNotFound is returned when a report does not exist or is inactive.
	ErrReportNotFound = errors.New("tablenav: report not found")

	// ErrReportForbidden is returned when a user may not see or change a report.
	ErrReportForbidden = errors.New("tablenav: report access denied")

	// ErrInvalidReport is returned when a report fails validation.
	ErrInvalidReport = errors.New("tablenav: invalid report")

	// ErrReportsUnsupported is returned when the session store cannot hold reports.
	ErrReportsUnsupported = errors.New("tablenav: session store does not support reports")
)
