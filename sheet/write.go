package sheet

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"roster/record"
)

const DefaultSheetName = "People"

// Columns returns the union of record keys in order of first appearance,
// starting with preferred names that occur in at least one record.
func Columns(recs []record.Record, preferred ...string) []string {
	present := make(map[string]bool)
	for _, r := range recs {
		for _, k := range r.Keys() {
			present[k] = true
		}
	}
	seen := make(map[string]bool, len(present))
	out := make([]string, 0, len(present))
	for _, p := range preferred {
		if present[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, r := range recs {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// WriteWorkbook writes an xlsx with a styled header row followed by one row
// per record. Missing and null fields are left blank.
func WriteWorkbook(w io.Writer, sheetName string, columns []string, recs []record.Record) error {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2563EB"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, col := range columns {
		width := utf8.RuneCountInString(col)
		for _, r := range recs {
			if v, ok := r.Get(col); ok {
				if n := utf8.RuneCountInString(v.Text()); n > width {
					width = n
				}
			}
		}
		if err := sw.SetColWidth(i+1, i+1, clampWidth(width+4)); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: col}
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{Height: 20}); err != nil {
		return fmt.Errorf("header row: %w", err)
	}

	for i, r := range recs {
		values := make([]any, len(columns))
		for j, col := range columns {
			v, ok := r.Get(col)
			if !ok {
				continue
			}
			switch v.Kind() {
			case record.KindNumber:
				values[j], _ = v.Num()
			case record.KindString:
				values[j], _ = v.Str()
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, values); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return f.Write(w)
}

func clampWidth(w int) float64 {
	switch {
	case w < 12:
		return 12
	case w > 60:
		return 60
	default:
		return float64(w)
	}
}
