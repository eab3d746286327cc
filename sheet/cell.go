package sheet

import (
	"strconv"
	"time"
)

type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellDate
)

// Cell is one decoded spreadsheet value.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

func StringCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellString, Text: s}
}

func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }

func DateCell(t time.Time) Cell { return Cell{Kind: CellDate, Time: t} }

// String renders the cell the way a spreadsheet user would read it.
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return FormatDate(c.Time)
	default:
		return ""
	}
}

// FormatDate renders t as an ISO 8601 date, adding the time of day only
// when it is not midnight.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04:05")
}

// Row is one data row keyed by 1-based column index. Number is the 1-based
// row number in the source file.
type Row struct {
	Number int
	Cells  map[int]Cell
}
