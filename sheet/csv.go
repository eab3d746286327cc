package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// toUTF8 strips a byte order mark and converts UTF-16 or Latin-1 input to
// UTF-8.
func toUTF8(data []byte) ([]byte, error) {
	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], nil
	case bytes.HasPrefix(data, bomUTF16LE):
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, bomUTF16BE):
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case utf8.Valid(data):
		return data, nil
	default:
		enc = charmap.ISO8859_1
	}
	return enc.NewDecoder().Bytes(data)
}

type csvSource struct {
	r      *csv.Reader
	rowNum int
}

// openCSV reads delimited text. A zero comma picks ';' when the first line
// has more semicolons than commas, ',' otherwise.
func openCSV(data []byte, comma rune) (*csvSource, error) {
	decoded, err := toUTF8(data)
	if err != nil {
		return nil, err
	}
	if comma == 0 {
		comma = sniffComma(decoded)
	}
	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &csvSource{r: r}, nil
}

func sniffComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func (s *csvSource) next() (Row, bool, error) {
	fields, err := s.r.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, err
	}
	s.rowNum++
	row := Row{Number: s.rowNum, Cells: make(map[int]Cell, len(fields))}
	for i, f := range fields {
		if f == "" {
			continue
		}
		row.Cells[i+1] = StringCell(f)
	}
	return row, true, nil
}

func (s *csvSource) close() error { return nil }
