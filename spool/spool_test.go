package spool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"roster/ingest"
	"roster/store"
)

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newTestRunner(t *testing.T, cfg Config) (*Runner, *store.People, *store.Uploads) {
	t.Helper()
	db, err := store.OpenDB(filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })
	people := store.NewPeople(db, ingest.DuplicateKey, store.PeopleOptions{})
	uploads := store.NewUploads(db)
	ing, err := ingest.New(people, nil, quietLogger())
	require.NoError(t, err)
	r, err := NewRunner(cfg, ing, uploads, quietLogger())
	require.NoError(t, err)
	return r, people, uploads
}

func TestRunner_ImportsSkipsSeenAndRejects(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "in")
	errDir := filepath.Join(tmp, "error")
	writeFile(t, filepath.Join(in, "a.csv"), "name,email\nAnn,ann@x.com\nBob,bob@x.com\n")
	writeFile(t, filepath.Join(in, "nested", "deep", "b.csv"), "Full Name,E-mail\nAnn,ANN@x.com\nCid,\n")
	writeFile(t, filepath.Join(in, "empty.csv"), "name,email\n")
	writeFile(t, filepath.Join(in, "zero.csv"), "")

	r, people, uploads := newTestRunner(t, Config{
		Globs:    []string{filepath.Join(in, "**", "*.csv")},
		ErrorDir: errDir,
		SkipSeen: true,
	})

	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Files)
	require.Equal(t, 2, stats.Ingested)
	require.Equal(t, 1, stats.Rejected)
	require.Equal(t, 1, stats.Moved)
	require.Equal(t, 3, stats.Added)
	require.Equal(t, 1, stats.Skipped)

	_, err = os.Stat(filepath.Join(errDir, "empty.csv"))
	require.NoError(t, err)
	_, total, err := people.Search(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)

	again, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, again.Seen)
	require.Zero(t, again.Ingested)

	recent, err := uploads.RecentUploads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	var rejected int
	for _, up := range recent {
		if up.Error != "" {
			rejected++
			require.Equal(t, "Empty file", up.Message)
		}
	}
	require.Equal(t, 1, rejected)
}

func TestRunner_DeleteAfterImportAndSizeCap(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "small.csv"), "name\nAnn\n")
	writeFile(t, filepath.Join(tmp, "big.csv"), "name\n"+strings.Repeat("X\n", 100))

	r, _, _ := newTestRunner(t, Config{
		Globs:             []string{filepath.Join(tmp, "*.csv")},
		DeleteAfterImport: true,
		MaxBytes:          64,
	})
	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Ingested)
	require.Equal(t, 1, stats.Deleted)
	require.Equal(t, 1, stats.Rejected)

	_, err = os.Stat(filepath.Join(tmp, "small.csv"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(tmp, "big.csv"))
	require.NoError(t, err)
}

func TestRunner_StopsWhenContextDone(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.csv"), "name\nAnn\n")
	r, _, _ := newTestRunner(t, Config{Globs: []string{filepath.Join(tmp, "*.csv")}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	_, err := r.RunOnce(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Config{}, nil, nil, nil)
	require.Error(t, err)
}

func TestExpandGlobs(t *testing.T) {
	tmp := t.TempDir()
	for _, p := range []string{"x.xlsx", "a/y.xlsx", "a/b/z.xlsx", "a/b/skip.txt", "c/d/w.xlsx"} {
		writeFile(t, filepath.Join(tmp, p), "x")
	}

	got, err := ExpandGlobs([]string{
		filepath.Join(tmp, "**", "*.xlsx"),
		filepath.Join(tmp, "*.xlsx"),
	})
	require.NoError(t, err)
	rel := make([]string, len(got))
	for i, g := range got {
		r, err := filepath.Rel(tmp, g)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}
	require.Equal(t, []string{"a/b/z.xlsx", "a/y.xlsx", "c/d/w.xlsx", "x.xlsx"}, rel)

	got, err = ExpandGlobs([]string{filepath.Join(tmp, "a", "**", "b", "*.xlsx")})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestMoveToDir_AvoidsOverwrite(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "err")
	writeFile(t, filepath.Join(dst, "f.csv"), "old")
	src := filepath.Join(tmp, "f.csv")
	writeFile(t, src, "new")

	moved, err := MoveToDir(src, dst)
	require.NoError(t, err)
	require.NotEqual(t, filepath.Join(dst, "f.csv"), moved)
	require.True(t, strings.HasPrefix(filepath.Base(moved), "f-"))
	require.Equal(t, ".csv", filepath.Ext(moved))

	b, err := os.ReadFile(moved)
	require.NoError(t, err)
	require.Equal(t, "new", string(b))
	b, err = os.ReadFile(filepath.Join(dst, "f.csv"))
	require.NoError(t, err)
	require.Equal(t, "old", string(b))

	_, err = MoveToDir(filepath.Join(tmp, "missing"), "")
	require.Error(t, err)
}
