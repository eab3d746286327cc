package sheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
)

// oleMinSize is an OLE2 header plus one sector; shorter input cannot hold a
// BIFF workbook.
const oleMinSize = 1024

// xlsSource reads the first worksheet of a legacy BIFF workbook. Cells are
// taken as the text Excel would show; the normalizer coerces numbers.
type xlsSource struct {
	ws     *xls.WorkSheet
	rowNum int
	maxRow int
}

func openXLS(data []byte) (src *xlsSource, err error) {
	if len(data) < oleMinSize {
		return nil, fmt.Errorf("truncated workbook: %d bytes", len(data))
	}
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("unreadable workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no worksheets")
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("workbook has no worksheets")
	}
	s := &xlsSource{ws: ws, maxRow: int(ws.MaxRow)}
	if ws.MaxRow == 0 && ws.Row(0) == nil {
		s.maxRow = -1
	}
	return s, nil
}

func (s *xlsSource) next() (row Row, ok bool, err error) {
	if s.rowNum > s.maxRow {
		return Row{}, false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			row, ok, err = Row{}, false, fmt.Errorf("unreadable row %d: %v", s.rowNum, r)
		}
	}()
	idx := s.rowNum
	s.rowNum++
	row = Row{Number: s.rowNum, Cells: map[int]Cell{}}
	r := s.ws.Row(idx)
	if r == nil {
		return row, true, nil
	}
	for c := r.FirstCol(); c < r.LastCol(); c++ {
		if text := strings.TrimSpace(r.Col(c)); text != "" {
			row.Cells[c+1] = StringCell(text)
		}
	}
	return row, true, nil
}

func (s *xlsSource) close() error { return nil }
