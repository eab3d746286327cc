// Package spool imports spreadsheet files matched by globs, the batch
// counterpart of the upload endpoint.
package spool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"roster/ingest"
	"roster/sheet"
	"roster/store"
)

// Ingester is the pipeline entry point the runner feeds.
type Ingester interface {
	Ingest(ctx context.Context, data []byte) (ingest.Result, error)
}

// History records and looks up past ingestions.
type History interface {
	RecordUpload(ctx context.Context, up *store.Upload) error
	SeenUpload(ctx context.Context, source, sha256 string) (bool, error)
}

type Config struct {
	Globs []string
	// ErrorDir receives malformed and empty files. Empty leaves them in place.
	ErrorDir          string
	DeleteAfterImport bool
	// SkipSeen skips a file whose path and digest were already ingested.
	SkipSeen bool
	MaxBytes int64
	Timeout  time.Duration
}

// Stats summarizes one run.
type Stats struct {
	Files    int
	Ingested int
	Seen     int
	Rejected int
	Failed   int
	Moved    int
	Deleted  int
	Added    int
	Skipped  int
}

type Runner struct {
	cfg  Config
	ing  Ingester
	hist History
	log  logrus.FieldLogger
}

func NewRunner(cfg Config, ing Ingester, hist History, log logrus.FieldLogger) (*Runner, error) {
	if len(cfg.Globs) == 0 {
		return nil, errors.New("spool: no input globs")
	}
	if ing == nil {
		return nil, errors.New("spool: ingester is required")
	}
	if hist == nil {
		return nil, errors.New("spool: history is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{cfg: cfg, ing: ing, hist: hist, log: log}, nil
}

// RunOnce ingests every matched file sequentially. Per-file failures are
// logged and counted; only glob errors and the end of ctx (or the
// configured timeout) stop the run.
func (r *Runner) RunOnce(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	paths, err := ExpandGlobs(r.cfg.Globs)
	if err != nil {
		return stats, fmt.Errorf("expand globs: %w", err)
	}
	r.log.WithFields(logrus.Fields{"files": len(paths), "delete_after_import": r.cfg.DeleteAfterImport, "timeout": r.cfg.Timeout}).
		Debug("spool run start")

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("run stopped after %d files: %w", stats.Files, err)
		}
		if err := r.importFile(ctx, p, &stats); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, fmt.Errorf("run stopped after %d files: %w", stats.Files, ctxErr)
			}
			stats.Failed++
			r.log.WithError(err).WithField("path", p).Error("import failed")
		}
	}

	r.log.WithFields(logrus.Fields{
		"files":    stats.Files,
		"ingested": stats.Ingested,
		"seen":     stats.Seen,
		"rejected": stats.Rejected,
		"failed":   stats.Failed,
		"moved":    stats.Moved,
		"deleted":  stats.Deleted,
		"added":    stats.Added,
		"skipped":  stats.Skipped,
		"elapsed":  time.Since(start).String(),
	}).Info("spool run done")
	return stats, nil
}

func (r *Runner) importFile(ctx context.Context, path string, stats *Stats) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Size() <= 0 {
		return nil
	}
	stats.Files++
	log := r.log.WithField("path", path)

	if info.Size() > r.cfg.MaxBytes {
		stats.Rejected++
		msg := fmt.Sprintf("file too large: %d bytes, limit %d", info.Size(), r.cfg.MaxBytes)
		r.record(ctx, &store.Upload{Source: path, SizeBytes: info.Size(), Error: msg})
		r.moveToErrorDir(path, stats, log)
		log.Warn(msg)
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		r.moveToErrorDir(path, stats, log)
		return err
	}
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if r.cfg.SkipSeen {
		seen, err := r.hist.SeenUpload(ctx, path, digest)
		if err != nil {
			return err
		}
		if seen {
			stats.Seen++
			log.WithField("sha256", digest).Debug("skip already imported file")
			return nil
		}
	}

	res, err := r.ing.Ingest(ctx, content)
	up := &store.Upload{
		BatchID:   res.BatchID,
		Source:    path,
		SHA256:    digest,
		SizeBytes: info.Size(),
		Added:     res.Added,
		Skipped:   res.Skipped,
		Message:   res.Message,
	}
	var malformed *sheet.MalformedFileError
	var empty *sheet.EmptyFileError
	switch {
	case err == nil:
	case errors.As(err, &malformed), errors.As(err, &empty):
		stats.Rejected++
		up.Error = err.Error()
		if empty != nil {
			up.Message = "Empty file"
		}
		r.record(ctx, up)
		r.moveToErrorDir(path, stats, log)
		log.WithError(err).Warn("file rejected")
		return nil
	default:
		if ctx.Err() != nil {
			return err
		}
		up.Error = err.Error()
		r.record(ctx, up)
		return err
	}

	stats.Ingested++
	stats.Added += res.Added
	stats.Skipped += res.Skipped
	r.record(ctx, up)
	log.WithFields(logrus.Fields{"added": res.Added, "skipped": res.Skipped, "message": res.Message}).Info("file imported")

	if r.cfg.DeleteAfterImport {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("delete imported file: %w", err)
		}
		stats.Deleted++
	}
	return nil
}

func (r *Runner) record(ctx context.Context, up *store.Upload) {
	if err := r.hist.RecordUpload(ctx, up); err != nil {
		r.log.WithError(err).WithField("path", up.Source).Error("record upload failed")
	}
}

func (r *Runner) moveToErrorDir(path string, stats *Stats, log logrus.FieldLogger) {
	if r.cfg.ErrorDir == "" {
		return
	}
	dst, err := MoveToDir(path, r.cfg.ErrorDir)
	if err != nil {
		log.WithError(err).Error("move to error dir failed")
		return
	}
	stats.Moved++
	log.WithField("dest", dst).Info("moved to error dir")
}
