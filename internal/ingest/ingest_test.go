package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
	"github.com/xHacka/combined-log-analyzer/internal/models"
	"github.com/xHacka/combined-log-analyzer/internal/repository"
)

const (
	lineA = `127.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326 "http://www.example.com/start.html" "Mozilla/4.08 [en] (Win98; I ;Nav)"`
	lineB = `20.115.56.6 - - [04/Nov/2022:23:56:33 -0500] "" 400 0 "-" "-"`
	lineC = `10.0.0.9 - - [01/Jan/2024:00:00:00 +0000] "POST /api/items HTTP/1.1" 201 17 "-" "curl/8.0"`
)

type memRepo struct {
	mu      sync.Mutex
	entries []models.LogEntry
	batches int
	fail    error
	// fail applies once this many batches have been stored.
	failAfter int
}

func (m *memRepo) InsertBatch(_ context.Context, entries []models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil && m.batches >= m.failAfter {
		return m.fail
	}
	m.entries = append(m.entries, entries...)
	m.batches++
	return nil
}

func (m *memRepo) Query(context.Context, repository.QueryFilters, int, int) ([]models.LogEntry, int, error) {
	return nil, 0, nil
}

func (m *memRepo) GetDashboardStats(context.Context, time.Time, time.Duration) (*repository.DashboardStats, error) {
	return &repository.DashboardStats{}, nil
}

func (m *memRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memRepo) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestIngester(repo *memRepo, onError clf.ErrorHandler) *Ingester {
	return NewIngester(repo, FilterRules{}, onError, 2, quietLogger())
}

func TestIngestReaderSkipPolicy(t *testing.T) {
	repo := &memRepo{}
	in := newTestIngester(repo, clf.SkipErrors)

	input := strings.Join([]string{lineA, "nope", "", lineB, lineC, ""}, "\n")
	res, err := in.IngestReader(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Ingested != 3 || res.Rejected != 1 || res.Stopped {
		t.Errorf("unexpected result: %+v", res)
	}
	if repo.batches != 2 {
		t.Errorf("expected 2 batches of size 2, got %d", repo.batches)
	}
	if repo.entries[1].RemoteAddr != "20.115.56.6" {
		t.Errorf("expected input order preserved, got %q", repo.entries[1].RemoteAddr)
	}
	for _, e := range repo.entries {
		if e.BatchID != res.BatchID {
			t.Errorf("expected batch id %q, got %q", res.BatchID, e.BatchID)
		}
	}
}

func TestIngestReaderFailPolicy(t *testing.T) {
	repo := &memRepo{}
	in := newTestIngester(repo, nil)

	input := strings.Join([]string{lineA, "nope", lineB}, "\n")
	res, err := in.IngestReader(context.Background(), strings.NewReader(input))
	if !errors.Is(err, clf.ErrLineRegexDoesntMatch) {
		t.Fatalf("expected LineRegexDoesntMatch, got %v", err)
	}
	if res.Ingested != 1 || repo.count() != 1 {
		t.Errorf("expected the line before the error to be stored, got %+v", res)
	}
}

func TestIngestReaderStopPolicy(t *testing.T) {
	repo := &memRepo{}
	in := newTestIngester(repo, clf.StopOnError)

	input := strings.Join([]string{lineA, "nope", lineB}, "\n")
	res, err := in.IngestReader(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("expected silent stop, got %v", err)
	}
	if !res.Stopped || res.Ingested != 1 || res.Rejected != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestIngestReaderBadTimestamp(t *testing.T) {
	repo := &memRepo{}
	in := newTestIngester(repo, nil)

	bad := strings.Replace(lineB, "/Nov/", "/Xyz/", 1)
	res, err := in.IngestReader(context.Background(), strings.NewReader(bad+"\n"+lineC))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Rejected != 1 || res.Ingested != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestIngestReaderRepoError(t *testing.T) {
	repo := &memRepo{fail: errors.New("disk full")}
	in := newTestIngester(repo, nil)
	if _, err := in.IngestReader(context.Background(), strings.NewReader(lineA)); err == nil {
		t.Error("expected insert error")
	}
}

func TestIngestReaderCancelled(t *testing.T) {
	repo := &memRepo{}
	in := newTestIngester(repo, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := in.IngestReader(ctx, strings.NewReader(lineA)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFilterRules(t *testing.T) {
	rules := NewFilterRules(
		[]string{"10.0.0.9"},
		[]string{"gif", ".CSS"},
		[]string{"head"},
		[]int{404},
		[]string{"/static/"},
	)
	tests := []struct {
		entry models.LogEntry
		skip  bool
	}{
		{models.LogEntry{RemoteAddr: "10.0.0.9", Path: "/"}, true},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Path: "/img/a.GIF"}, true},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Path: "/site.css"}, true},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Method: "HEAD", Path: "/"}, true},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Status: 404, Path: "/x"}, true},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Path: "/static/app"}, true},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Method: "GET", Path: "/index.html", Status: 200}, false},
		{models.LogEntry{RemoteAddr: "1.1.1.1", Status: 400}, false},
	}
	for _, tt := range tests {
		if got := rules.Skip(tt.entry); got != tt.skip {
			t.Errorf("Skip(%+v) = %v, expected %v", tt.entry, got, tt.skip)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReadFullFileAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte(lineA+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	repo := &memRepo{}
	in := newTestIngester(repo, clf.SkipErrors)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.ReadFullFileAndTail(ctx, path) }()

	waitFor(t, func() bool { return repo.count() == 1 })

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	// The partial second line must wait for its newline.
	if _, err := f.WriteString(lineB + "\n" + lineC[:10]); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return repo.count() == 2 })
	if _, err := f.WriteString(lineC[10:] + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	waitFor(t, func() bool { return repo.count() == 3 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil on cancel, got %v", err)
	}
	if got := repo.entries[2].RemoteAddr; got != "10.0.0.9" {
		t.Errorf("expected reassembled third line, got %q", got)
	}
}

func TestTailFileFatalPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("garbage that predates tailing\n"), 0644); err != nil {
		t.Fatal(err)
	}

	repo := &memRepo{}
	in := newTestIngester(repo, nil)
	done := make(chan error, 1)
	go func() { done <- in.TailFile(context.Background(), path) }()

	// Give the watcher time to start before appending.
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(lineA + "\nnope\n" + lineB + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case err := <-done:
		if !errors.Is(err, clf.ErrLineRegexDoesntMatch) {
			t.Errorf("expected LineRegexDoesntMatch, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail did not stop on fatal parse error")
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 stored entry, got %d", repo.count())
	}
}

func TestIngestNewLinesOversizedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	long := strings.Repeat("x", 2<<20)
	if err := os.WriteFile(path, []byte(lineA+"\n"+long+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	repo := &memRepo{}
	in := newTestIngester(repo, clf.SkipErrors)
	var offset int64
	for i := range 3 {
		res, err := in.ingestNewLines(context.Background(), path, &offset)
		if err != nil {
			t.Fatalf("pass %d: unexpected error: %v", i, err)
		}
		if i == 0 && res.Rejected != 1 {
			t.Errorf("expected the long line to be rejected, got %+v", res)
		}
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 stored entry, got %d", repo.count())
	}
	if want := int64(len(lineA) + len(long) + 2); offset != want {
		t.Errorf("expected offset %d, got %d", want, offset)
	}
}

func TestIngestNewLinesInsertFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	content := lineA + "\n" + lineB + "\r\n" + lineC + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Batch size is 2: the first batch is stored, the second fails.
	repo := &memRepo{fail: errors.New("database is locked"), failAfter: 1}
	in := newTestIngester(repo, nil)
	var offset int64
	if _, err := in.ingestNewLines(context.Background(), path, &offset); err == nil {
		t.Fatal("expected insert error")
	}
	if want := int64(len(lineA) + len(lineB) + 3); offset != want {
		t.Errorf("expected offset after the stored batch (%d), got %d", want, offset)
	}

	repo.setFail(nil)
	if _, err := in.ingestNewLines(context.Background(), path, &offset); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if repo.count() != 3 {
		t.Fatalf("expected 3 stored entries, got %d", repo.count())
	}
	for i, want := range []string{"127.0.0.1", "20.115.56.6", "10.0.0.9"} {
		if got := repo.entries[i].RemoteAddr; got != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, got)
		}
	}
	if offset != int64(len(content)) {
		t.Errorf("expected offset %d, got %d", len(content), offset)
	}
}
