package ingest

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"roster/record"
	"roster/sheet"
)

// NormalizeRow builds a candidate Record from a decoded row. Cells are
// visited in column order, empty cells are omitted, and when two columns
// map to the same field the first non-empty value is kept. ok is false for
// a row without any value.
func NormalizeRow(row sheet.Row, m Mapping, log logrus.FieldLogger) (rec record.Record, ok bool) {
	cols := make([]int, 0, len(row.Cells))
	for c := range row.Cells {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	for _, c := range cols {
		v := CellValue(row.Cells[c])
		if v.IsEmpty() {
			continue
		}
		field := m.Field(c)
		if rec.Has(field) {
			if log != nil {
				log.WithFields(logrus.Fields{"row": row.Number, "column": c, "field": field}).
					Debug("second column for field ignored")
			}
			continue
		}
		rec.Set(field, v)
	}
	return rec, !rec.Empty()
}

// CellValue converts a cell to its natural scalar: numbers stay numbers,
// dates become ISO 8601 strings, text is trimmed and numeric-looking text
// becomes a number.
func CellValue(c sheet.Cell) record.Value {
	switch c.Kind {
	case sheet.CellNumber:
		return record.Number(c.Number)
	case sheet.CellDate:
		return record.String(sheet.FormatDate(c.Time))
	case sheet.CellString:
		return record.ParseScalar(strings.TrimSpace(c.Text))
	default:
		return record.Null()
	}
}
