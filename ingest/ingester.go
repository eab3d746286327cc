// Package ingest turns uploaded spreadsheets into stored people records:
// header reconciliation, row normalization, duplicate resolution and the
// ingestion report.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"roster/record"
	"roster/sheet"
)

// Result is the Report plus the counters kept for logs and history.
type Result struct {
	Report
	BatchID   string
	Format    sheet.Format
	Rows      int
	BlankRows int
	Headers   []Header
}

type Ingester struct {
	store      Store
	reconciler *Reconciler
	log        logrus.FieldLogger
}

func New(store Store, aliases AliasTable, log logrus.FieldLogger) (*Ingester, error) {
	if store == nil {
		return nil, errors.New("ingest: store is required")
	}
	if len(aliases) == 0 {
		aliases = DefaultAliases()
	}
	if err := aliases.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Ingester{store: store, reconciler: NewReconciler(aliases), log: log}, nil
}

// Ingest decodes data, stores the rows that are not duplicates and reports
// the outcome. Decoder errors are *sheet.MalformedFileError or
// *sheet.EmptyFileError; store failures match ErrStore; a done context is
// returned as ctx.Err(). In every error case nothing from this call is
// assumed stored.
func (in *Ingester) Ingest(ctx context.Context, data []byte) (res Result, err error) {
	start := time.Now()
	res.BatchID = uuid.NewString()
	log := in.log.WithField("batch_id", res.BatchID)

	defer func() {
		result := classify(err)
		ingestRuns.WithLabelValues(result).Inc()
		ingestLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	tbl, err := sheet.Decode(ctx, data)
	if err != nil {
		log.WithError(err).Info("upload rejected")
		return res, err
	}
	defer tbl.Close()
	res.Format = tbl.Format

	mapping, headers := in.reconciler.Reconcile(tbl.Header)
	res.Headers = headers
	for _, h := range headers {
		log.WithFields(logrus.Fields{"column": h.Column, "label": h.Label, "field": h.Field, "match": h.Match}).
			Debug("header resolved")
	}

	var candidates []record.Record
	for tbl.Next() {
		res.Rows++
		rec, ok := NormalizeRow(tbl.Row(), mapping, log)
		if !ok {
			res.BlankRows++
			continue
		}
		candidates = append(candidates, rec)
	}
	if err := tbl.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return res, ctxErr
		}
		log.WithError(err).Info("upload rejected mid-file")
		return res, err
	}
	ingestRows.WithLabelValues("blank").Add(float64(res.BlankRows))

	if len(candidates) == 0 {
		res.Report = BuildReport(0, Resolution{})
		log.WithField("rows", res.Rows).Info("no valid rows")
		return res, nil
	}

	resolution, err := Resolve(ctx, in.store, candidates)
	if err != nil {
		log.WithError(err).Error("ingestion failed")
		return res, err
	}
	res.Report = BuildReport(len(candidates), resolution)
	ingestRows.WithLabelValues("added").Add(float64(res.Added))
	ingestRows.WithLabelValues("skipped").Add(float64(res.Skipped))

	log.WithFields(logrus.Fields{
		"format":  res.Format,
		"rows":    res.Rows,
		"blank":   res.BlankRows,
		"keys":    resolution.Keys,
		"added":   res.Added,
		"skipped": res.Skipped,
	}).Info("ingestion done")
	return res, nil
}

func classify(err error) string {
	var malformed *sheet.MalformedFileError
	var empty *sheet.EmptyFileError
	switch {
	case err == nil:
		return resultOK
	case errors.As(err, &malformed):
		return resultMalformed
	case errors.As(err, &empty):
		return resultEmpty
	case errors.Is(err, ErrStore):
		return resultStore
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resultCanceled
	default:
		return resultStore
	}
}
