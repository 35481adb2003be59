package ingest

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
	"github.com/xHacka/combined-log-analyzer/internal/models"
	"github.com/xHacka/combined-log-analyzer/internal/repository"
)

const defaultBatchSize = 1000

// Result summarizes one ingestion run.
type Result struct {
	BatchID  string `json:"batch_id"`
	Ingested int    `json:"ingested"`
	Skipped  int    `json:"skipped"`  // dropped by filter rules
	Rejected int    `json:"rejected"` // malformed lines and bad timestamps
	Stopped  bool   `json:"stopped"`  // error policy ended the stream early
}

// Ingester parses combined-format lines and stores them in batches.
// A nil OnError makes the first malformed line fail the whole run.
type Ingester struct {
	Repo      repository.LogRepository
	Rules     FilterRules
	OnError   clf.ErrorHandler
	BatchSize int
	Log       logrus.FieldLogger
}

func NewIngester(repo repository.LogRepository, rules FilterRules, onError clf.ErrorHandler, batchSize int, log logrus.FieldLogger) *Ingester {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Ingester{Repo: repo, Rules: rules, OnError: onError, BatchSize: batchSize, Log: log}
}

func (in *Ingester) logger() logrus.FieldLogger {
	if in.Log == nil {
		return logrus.StandardLogger()
	}
	return in.Log
}

// IngestReader reads lines from r until EOF, the error policy stops the
// stream, or ctx is cancelled. Entries parsed before a fatal error are
// still stored.
func (in *Ingester) IngestReader(ctx context.Context, r io.Reader) (Result, error) {
	lines, scanErr := clf.Lines(r)
	res, err := in.ingestLines(ctx, lines, nil)
	if err != nil {
		return res, err
	}
	if err := scanErr(); err != nil {
		return res, fmt.Errorf("read lines: %w", err)
	}
	return res, nil
}

// ingestLines does the work of IngestReader. flushed, when set, runs after
// every successful insert, while the last pulled line is the newest stored.
func (in *Ingester) ingestLines(ctx context.Context, lines iter.Seq[string], flushed func()) (Result, error) {
	res := Result{BatchID: uuid.NewString()}
	log := in.logger().WithField("batch_id", res.BatchID)

	var onError clf.ErrorHandler
	if in.OnError != nil {
		onError = func(err *clf.Error) bool {
			res.Rejected++
			log.WithField("kind", err.Kind).Debugf("malformed line: %q", err.Line)
			if in.OnError(err) {
				return true
			}
			res.Stopped = true
			return false
		}
	}

	size := in.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	batch := make([]models.LogEntry, 0, size)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.Repo.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		res.Ingested += len(batch)
		batch = batch[:0]
		if flushed != nil {
			flushed()
		}
		return nil
	}

	for rec, err := range clf.NewStream(onError).Records(lines) {
		if err != nil {
			res.Rejected++
			if ferr := flush(); ferr != nil {
				return res, ferr
			}
			return res, err
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e, err := models.FromRecord(rec)
		if err != nil {
			res.Rejected++
			log.Warnf("skipping line: %v", err)
			continue
		}
		if in.Rules.Skip(e) {
			res.Skipped++
			continue
		}
		e.BatchID = res.BatchID
		batch = append(batch, e)
		if len(batch) >= size {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	log.WithFields(logrus.Fields{
		"ingested": res.Ingested,
		"skipped":  res.Skipped,
		"rejected": res.Rejected,
	}).Debug("ingest finished")
	return res, nil
}

// IngestFile ingests the whole file at path.
func (in *Ingester) IngestFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return in.IngestReader(ctx, f)
}
