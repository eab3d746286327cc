// Package sheet decodes uploaded spreadsheets into header-labelled rows and
// writes record sets back out as xlsx workbooks.
package sheet

import (
	"context"
	"errors"
	"strings"
)

type rowSource interface {
	next() (Row, bool, error)
	close() error
}

// Table is a decoded spreadsheet: the header row plus a lazy iterator over
// the data rows that follow it.
type Table struct {
	Format Format
	// Header maps 1-based column index to the raw header label. Columns with
	// an empty header cell are absent.
	Header map[int]string

	ctx    context.Context
	src    rowSource
	peeked *Row
	cur    Row
	err    error
	done   bool
}

// Decode parses data as an xlsx or xls workbook (first worksheet) or a CSV/TSV
// file. It fails with *MalformedFileError when the bytes cannot be parsed
// and with *EmptyFileError when there is no data row after the header.
func Decode(ctx context.Context, data []byte) (*Table, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}

	var src rowSource
	switch format {
	case FormatXLSX:
		src, err = openXLSX(data)
	case FormatXLS:
		src, err = openXLS(data)
	case FormatTSV:
		src, err = openCSV(data, '\t')
	default:
		src, err = openCSV(data, 0)
	}
	if err != nil {
		return nil, malformed(format, err)
	}

	header, ok, err := src.next()
	if err != nil {
		_ = src.close()
		return nil, malformed(format, err)
	}
	if !ok {
		_ = src.close()
		return nil, &EmptyFileError{Rows: 0}
	}
	first, ok, err := src.next()
	if err != nil {
		_ = src.close()
		return nil, malformed(format, err)
	}
	if !ok {
		_ = src.close()
		return nil, &EmptyFileError{Rows: 1}
	}

	labels := make(map[int]string, len(header.Cells))
	for col, c := range header.Cells {
		if s := strings.TrimSpace(c.String()); s != "" {
			labels[col] = s
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Table{
		Format: format,
		Header: labels,
		ctx:    ctx,
		src:    src,
		peeked: &first,
	}, nil
}

// Next advances to the next data row. It returns false at the end of the
// file, on a parse error, or once the context is done.
func (t *Table) Next() bool {
	if t.err != nil || t.done {
		return false
	}
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return false
	}
	if t.peeked != nil {
		t.cur, t.peeked = *t.peeked, nil
		return true
	}
	row, ok, err := t.src.next()
	if err != nil {
		t.err = malformed(t.Format, err)
		return false
	}
	if !ok {
		t.done = true
		return false
	}
	t.cur = row
	return true
}

func (t *Table) Row() Row { return t.cur }

// Err returns the error that stopped iteration, if any.
func (t *Table) Err() error { return t.err }

func (t *Table) Close() error {
	if t.src == nil {
		return nil
	}
	err := t.src.close()
	t.src = nil
	return err
}

func malformed(format Format, err error) error {
	var m *MalformedFileError
	if errors.As(err, &m) {
		return err
	}
	return &MalformedFileError{Format: string(format), Err: err}
}
