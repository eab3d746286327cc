package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roster/record"
	"roster/sheet"
)

func TestNormalizeRow(t *testing.T) {
	m, _ := NewReconciler(DefaultAliases()).Reconcile(map[int]string{1: "Name", 2: "Age", 3: "Joined", 4: "Zip"})
	row := sheet.Row{Number: 2, Cells: map[int]sheet.Cell{
		4: sheet.StringCell(" 007 "),
		1: sheet.StringCell("  Ann  "),
		2: sheet.StringCell(" 42 "),
		3: sheet.DateCell(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		6: sheet.NumberCell(1.5),
	}}

	got, ok := NormalizeRow(row, m, nil)
	require.True(t, ok)
	requireRecords(t, []record.Record{rec("name", "Ann", "age", 42, "joined", "2024-01-02", "zip", "007", "col6", 1.5)}, []record.Record{got})
}

func TestNormalizeRow_BlankRow(t *testing.T) {
	m, _ := NewReconciler(DefaultAliases()).Reconcile(map[int]string{1: "Name"})
	_, ok := NormalizeRow(sheet.Row{Number: 3, Cells: map[int]sheet.Cell{
		1: sheet.StringCell("   "),
		2: {},
	}}, m, nil)
	require.False(t, ok)
}

func TestNormalizeRow_FirstNonEmptyWins(t *testing.T) {
	m, _ := NewReconciler(DefaultAliases()).Reconcile(map[int]string{1: "Email", 2: "E-mail Address", 3: "Mail"})
	got, ok := NormalizeRow(sheet.Row{Number: 2, Cells: map[int]sheet.Cell{
		1: sheet.StringCell(""),
		2: sheet.StringCell("b@x.com"),
		3: sheet.StringCell("c@x.com"),
	}}, m, nil)
	require.True(t, ok)
	requireRecords(t, []record.Record{rec("email", "b@x.com")}, []record.Record{got})
}
