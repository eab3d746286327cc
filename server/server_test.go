package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"roster/ingest"
	"roster/store"
)

type testEnv struct {
	handler http.Handler
	uploads *store.Uploads
	people  *store.People
}

func newTestEnv(t *testing.T, maxUpload int64) testEnv {
	t.Helper()
	db, err := store.OpenDB(filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	log := logrus.New()
	log.SetOutput(io.Discard)
	people := store.NewPeople(db, ingest.DuplicateKey, store.PeopleOptions{})
	uploads := store.NewUploads(db)
	ing, err := ingest.New(people, nil, log)
	require.NoError(t, err)

	srv, err := New(Options{
		Ingester:       ing,
		People:         people,
		History:        uploads,
		MaxUploadBytes: maxUpload,
		AllowedOrigins: []string{"http://ui.test"},
		Log:            log,
	})
	require.NoError(t, err)
	return testEnv{handler: srv.Handler(), uploads: uploads, people: people}
}

func uploadRequest(t *testing.T, field, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUpload_ReportAndDuplicates(t *testing.T) {
	env := newTestEnv(t, 0)
	csv := []byte("Full Name,E-mail\nAnn,ann@x.com\nBob,\n,\n")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, uploadRequest(t, "file", "people.csv", csv))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"added": 2.0, "skipped": 0.0, "message": "Success"}, decodeJSON(t, rec))
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := uploadRequest(t, "file", "people.csv", csv)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	require.Equal(t, map[string]any{"added": 1.0, "skipped": 1.0, "message": "Duplicate data found"}, decodeJSON(t, rec))

	recent, err := env.uploads.RecentUploads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "people.csv", recent[0].Source)
	require.NotEmpty(t, recent[0].BatchID)
}

func TestUpload_Errors(t *testing.T) {
	env := newTestEnv(t, 1024)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, uploadRequest(t, "other", "x.csv", []byte("a\nb\n")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No file uploaded", decodeJSON(t, rec)["error"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, uploadRequest(t, "file", "big.csv", []byte("name\n"+strings.Repeat("x", 2048))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "File too large", decodeJSON(t, rec)["error"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, uploadRequest(t, "file", "empty.csv", []byte("name,email\n")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, map[string]any{"added": 0.0, "skipped": 0.0, "message": "Empty file"}, decodeJSON(t, rec))

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, uploadRequest(t, "file", "x.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeJSON(t, rec)["error"], "Invalid spreadsheet")

	recent, err := env.uploads.RecentUploads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, up := range recent {
		require.NotEmpty(t, up.Error)
	}
}

func TestTemplateAndExport(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "people_template.xlsx")

	// The template uploads as one person.
	rec2 := httptest.NewRecorder()
	env.handler.ServeHTTP(rec2, uploadRequest(t, "file", "template.xlsx", rec.Body.Bytes()))
	require.Equal(t, http.StatusOK, rec2.Code)
	require.Equal(t, 1.0, decodeJSON(t, rec2)["added"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export?search=john&minAge=18", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("People")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"name", "age", "email", "city", "phone"}, rows[0])
	require.Equal(t, "John Doe", rows[1][0])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export?minAge=old", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON(t, rec)["status"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "roster_http_requests_total")

	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "http://ui.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, "http://ui.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
