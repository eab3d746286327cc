package ingest

import (
	"io"

	"roster/record"
	"roster/sheet"
)

var sampleValues = map[string]record.Value{
	"name":  record.String("John Doe"),
	"age":   record.Number(30),
	"email": record.String("john@example.com"),
	"city":  record.String("New York"),
	"phone": record.String("123-456-7890"),
}

// SampleRecord is the example row shipped in the upload template. Fields
// without a known sample value are left out.
func SampleRecord(columns []string) record.Record {
	var r record.Record
	for _, c := range columns {
		if v, ok := sampleValues[c]; ok {
			r.Set(c, v)
		}
	}
	return r
}

// WriteTemplate writes an xlsx whose header row holds the canonical field
// names of aliases, followed by one sample row. The result uploads cleanly.
func WriteTemplate(w io.Writer, aliases AliasTable) error {
	if len(aliases) == 0 {
		aliases = DefaultAliases()
	}
	columns := aliases.Fields()
	return sheet.WriteWorkbook(w, sheet.DefaultSheetName, columns, []record.Record{SampleRecord(columns)})
}
