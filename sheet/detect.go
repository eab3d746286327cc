package sheet

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLS  Format = "xls"
)

// Detect sniffs the tabular format of data. Non-tabular content is
// reported as MalformedFileError.
func Detect(data []byte) (Format, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", &EmptyFileError{}
	}
	m := mimetype.Detect(data)
	switch {
	case m.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
		m.Is("application/zip"):
		// A bare zip may still be an xlsx written without the usual entry
		// order; excelize decides.
		return FormatXLSX, nil
	case m.Is("text/tab-separated-values"):
		return FormatTSV, nil
	case m.Is("text/csv"), m.Is("text/plain"):
		return FormatCSV, nil
	case m.Is("application/vnd.ms-excel"), m.Is("application/x-ole-storage"):
		return FormatXLS, nil
	default:
		return "", &MalformedFileError{Format: m.String(), Err: fmt.Errorf("not a spreadsheet")}
	}
}
