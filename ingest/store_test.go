package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"roster/record"
)

type memStore struct {
	mu      sync.Mutex
	recs    []record.Record
	finds   [][]string
	inserts int
	failErr error
}

func (m *memStore) FindWhereFieldIn(ctx context.Context, field string, values []string) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds = append(m.finds, append([]string(nil), values...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[strings.ToLower(v)] = true
	}
	var out []record.Record
	for _, r := range m.recs {
		if k := DuplicateKey(r); k != "" && want[k] {
			out = append(out, record.New(record.Field{Name: field, Value: record.String(k)}))
		}
	}
	return out, nil
}

func (m *memStore) InsertMany(ctx context.Context, recs []record.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failErr != nil {
		return 0, m.failErr
	}
	for _, r := range recs {
		m.recs = append(m.recs, r.Clone())
	}
	return len(recs), nil
}

func (m *memStore) Records() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, len(m.recs))
	copy(out, m.recs)
	return out
}

func (m *memStore) Calls() (finds, inserts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.finds), m.inserts
}

// buildXLSX writes rows starting at A1; nil leaves a cell unset.
func buildXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", axis, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func rec(kv ...any) record.Record {
	var r record.Record
	for i := 0; i+1 < len(kv); i += 2 {
		name := kv[i].(string)
		switch v := kv[i+1].(type) {
		case string:
			r.Set(name, record.String(v))
		case int:
			r.Set(name, record.Number(float64(v)))
		case float64:
			r.Set(name, record.Number(v))
		case nil:
			r.Set(name, record.Null())
		}
	}
	return r
}

func newTestIngester(t *testing.T, st Store) *Ingester {
	t.Helper()
	in, err := New(st, nil, nil)
	require.NoError(t, err)
	return in
}

func requireRecords(t *testing.T, want, got []record.Record) {
	t.Helper()
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON))
	for i := range want {
		require.Equal(t, want[i].Keys(), got[i].Keys(), "field order of record %d", i)
	}
}
