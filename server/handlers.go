package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"roster/ingest"
	"roster/record"
	"roster/sheet"
	"roster/store"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// formOverhead leaves room for multipart boundaries and headers on top
	// of the file size limit.
	formOverhead = 64 << 10
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := Logger(r.Context(), s.log)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			_ = WriteError(w, http.StatusBadRequest, "File too large")
		case errors.Is(err, http.ErrMissingFile):
			_ = WriteError(w, http.StatusBadRequest, "No file uploaded")
		default:
			_ = WriteError(w, http.StatusBadRequest, "Invalid upload form")
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if hdr.Size > s.maxUpload {
		_ = WriteError(w, http.StatusBadRequest, "File too large")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		_ = WriteError(w, http.StatusBadRequest, "Could not read file")
		return
	}
	if int64(len(data)) > s.maxUpload {
		_ = WriteError(w, http.StatusBadRequest, "File too large")
		return
	}

	sum := sha256.Sum256(data)
	res, err := s.ing.Ingest(r.Context(), data)
	up := &store.Upload{
		BatchID:   res.BatchID,
		Source:    hdr.Filename,
		SHA256:    hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
		Added:     res.Added,
		Skipped:   res.Skipped,
		Message:   res.Message,
	}
	if err != nil {
		up.Error = err.Error()
	}

	var malformed *sheet.MalformedFileError
	var empty *sheet.EmptyFileError
	switch {
	case err == nil:
		s.record(r, up)
		_ = WriteJSON(w, http.StatusOK, res.Report)
	case errors.As(err, &empty):
		up.Message = "Empty file"
		s.record(r, up)
		_ = WriteJSON(w, http.StatusUnprocessableEntity, ingest.Report{Message: "Empty file"})
	case errors.As(err, &malformed):
		s.record(r, up)
		_ = WriteError(w, http.StatusBadRequest, "Invalid spreadsheet: "+malformed.Err.Error())
	default:
		log.WithError(err).Error("upload failed")
		s.record(r, up)
		_ = WriteError(w, http.StatusInternalServerError, "Failed")
	}
}

func (s *Server) record(r *http.Request, up *store.Upload) {
	if err := s.history.RecordUpload(r.Context(), up); err != nil {
		Logger(r.Context(), s.log).WithError(err).Error("record upload failed")
	}
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := ingest.WriteTemplate(&buf, s.aliases); err != nil {
		Logger(r.Context(), s.log).WithError(err).Error("template failed")
		_ = WriteError(w, http.StatusInternalServerError, "Failed")
		return
	}
	writeWorkbook(w, "people_template.xlsx", buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{Query: q.Get("search")}
	var err error
	if filter.MinAge, err = parseBound(q.Get("minAge")); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "Invalid minAge")
		return
	}
	if filter.MaxAge, err = parseBound(q.Get("maxAge")); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "Invalid maxAge")
		return
	}

	entries, _, err := s.people.Search(r.Context(), filter)
	if err != nil {
		Logger(r.Context(), s.log).WithError(err).Error("export search failed")
		_ = WriteError(w, http.StatusInternalServerError, "Failed")
		return
	}
	recs := make([]record.Record, len(entries))
	for i, e := range entries {
		recs[i] = e.Record
	}
	var buf bytes.Buffer
	if err := sheet.WriteWorkbook(&buf, sheet.DefaultSheetName, sheet.Columns(recs, s.aliases.Fields()...), recs); err != nil {
		Logger(r.Context(), s.log).WithError(err).Error("export failed")
		_ = WriteError(w, http.StatusInternalServerError, "Failed")
		return
	}
	writeWorkbook(w, "people_export.xlsx", buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeWorkbook(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
