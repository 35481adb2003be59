package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

const pollInterval = 2 * time.Second

// TailFile ingests lines appended to path after the call. It returns nil
// when ctx is cancelled or the error policy stops the stream, and the
// parse error when the policy is fatal.
func (in *Ingester) TailFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return in.tail(ctx, path, info.Size())
}

// ReadFullFileAndTail ingests existing content first, then tails.
func (in *Ingester) ReadFullFileAndTail(ctx context.Context, path string) error {
	return in.tail(ctx, path, 0)
}

func (in *Ingester) tail(ctx context.Context, path string, offset int64) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log := in.logger().WithField("path", path)
	ingest := func() (bool, error) {
		res, err := in.ingestNewLines(ctx, path, &offset)
		if err != nil {
			var perr *clf.Error
			if errors.As(err, &perr) {
				return true, err
			}
			if ctx.Err() != nil {
				return true, nil
			}
			log.Errorf("ingest error: %v", err)
			return false, nil
		}
		if res.Ingested > 0 {
			log.Infof("Ingested %d lines", res.Ingested)
		}
		return res.Stopped, nil
	}

	if done, err := ingest(); done {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("fsnotify error: %v", err)
			continue
		case <-ticker.C:
		}
		if done, err := ingest(); done {
			return err
		}
	}
}

// ingestNewLines ingests complete lines between *offset and the end of the
// file and advances *offset past them. A trailing partial line is left for
// the next call. A file shorter than *offset was truncated and is re-read
// from the start. When storing fails, *offset only moves past lines whose
// batch was already inserted.
func (in *Ingester) ingestNewLines(ctx context.Context, path string, offset *int64) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, err
	}
	if info.Size() < *offset {
		in.logger().WithField("path", path).Info("file truncated, reading from start")
		*offset = 0
	}
	if info.Size() == *offset {
		return Result{}, nil
	}

	if _, err := f.Seek(*offset, io.SeekStart); err != nil {
		return Result{}, err
	}
	data, err := io.ReadAll(io.LimitReader(f, info.Size()-*offset))
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return Result{}, nil
	}
	chunk := data[:end+1]

	// The chunk is in memory, so split it directly; a bufio.Scanner would
	// fail on lines longer than its buffer.
	var pos, committed int
	lines := func(yield func(string) bool) {
		for pos < len(chunk) {
			i := bytes.IndexByte(chunk[pos:], '\n')
			line := bytes.TrimSuffix(chunk[pos:pos+i], []byte("\r"))
			pos += i + 1
			if !yield(string(line)) {
				return
			}
		}
	}

	res, err := in.ingestLines(ctx, lines, func() { committed = pos })
	var perr *clf.Error
	if err != nil && !errors.As(err, &perr) {
		*offset += int64(committed)
		return res, err
	}
	*offset += int64(len(chunk))
	return res, err
}
