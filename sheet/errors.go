package sheet

import "fmt"

// MalformedFileError reports bytes that are not a supported spreadsheet.
type MalformedFileError struct {
	Format string
	Err    error
}

func (e *MalformedFileError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("malformed file (%s): %v", e.Format, e.Err)
	}
	return fmt.Sprintf("malformed file: %v", e.Err)
}

func (e *MalformedFileError) Unwrap() error { return e.Err }

// EmptyFileError reports a parseable file without a header and data row.
type EmptyFileError struct {
	Rows int
}

func (e *EmptyFileError) Error() string {
	return fmt.Sprintf("empty file: %d row(s), need a header row and at least one data row", e.Rows)
}
