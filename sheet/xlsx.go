package sheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type xlsxSource struct {
	f        *excelize.File
	sheet    string
	rows     *excelize.Rows
	rowNum   int
	date1904 bool
	// dateStyles caches whether a style id formats numbers as dates.
	dateStyles map[int]bool
}

func openXLSX(data []byte) (*xlsxSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("workbook has no worksheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s := &xlsxSource{
		f:          f,
		sheet:      sheets[0],
		rows:       rows,
		dateStyles: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		s.date1904 = *props.Date1904
	}
	return s, nil
}

func (s *xlsxSource) next() (Row, bool, error) {
	if !s.rows.Next() {
		return Row{}, false, s.rows.Error()
	}
	s.rowNum++
	cols, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return Row{}, false, err
	}
	row := Row{Number: s.rowNum, Cells: make(map[int]Cell, len(cols))}
	for i, raw := range cols {
		if raw == "" {
			continue
		}
		row.Cells[i+1] = s.cell(i+1, s.rowNum, raw)
	}
	return row, true, nil
}

// cell types a raw cell value. Formula cells arrive as their cached result.
func (s *xlsxSource) cell(col, rowNum int, raw string) Cell {
	axis, err := excelize.CoordinatesToCellName(col, rowNum)
	if err != nil {
		return StringCell(raw)
	}
	typ, err := s.f.GetCellType(s.sheet, axis)
	if err != nil {
		return StringCell(raw)
	}
	switch typ {
	case excelize.CellTypeBool:
		return StringCell(strconv.FormatBool(raw == "1" || strings.EqualFold(raw, "true")))
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return DateCell(t)
			}
		}
		return StringCell(raw)
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return StringCell(raw)
		}
		if s.isDateCell(axis) {
			if t, err := excelize.ExcelDateToTime(f, s.date1904); err == nil {
				return DateCell(t)
			}
		}
		return NumberCell(f)
	default:
		return StringCell(raw)
	}
}

func (s *xlsxSource) isDateCell(axis string) bool {
	id, err := s.f.GetCellStyle(s.sheet, axis)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := s.dateStyles[id]; ok {
		return v
	}
	isDate := false
	if st, err := s.f.GetStyle(id); err == nil && st != nil {
		if st.CustomNumFmt != nil {
			isDate = isDateFormatCode(*st.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(st.NumFmt)
		}
	}
	s.dateStyles[id] = isDate
	return isDate
}

func (s *xlsxSource) close() error {
	err := s.rows.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format renders a date or
// time. Quoted literals, escaped characters and bracketed sections such as
// colors or locales are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			// [h], [mm] and [ss] are elapsed-time tokens.
			if end := strings.IndexByte(code[i:], ']'); end > 0 {
				inner := strings.ToLower(code[i+1 : i+end])
				if strings.Trim(inner, "hms") == "" && inner != "" {
					b.WriteString(inner)
					i += end
					continue
				}
			}
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ymdhs")
}
