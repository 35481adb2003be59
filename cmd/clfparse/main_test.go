package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

const (
	normalLine  = `127.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326 "http://www.example.com/start.html" "Mozilla/4.08 [en] (Win98; I ;Nav)"`
	minimalLine = `20.115.56.6 - - [04/Nov/2022:23:56:33 -0500] "" 400 0 "-" "-"`
)

func decodeAll(t *testing.T, out string) []clf.Record {
	t.Helper()
	var recs []clf.Record
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var rec clf.Record
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestRunStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	in := strings.NewReader(normalLine + "\n\n" + minimalLine + "\n")
	if err := run(Options{OnError: "fail", Summary: true}, in, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	recs := decodeAll(t, stdout.String())
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].RequestLine == nil || recs[0].RequestLine.Method != "GET" {
		t.Errorf("expected parsed request line, got %+v", recs[0])
	}
	if recs[1].RequestLine != nil {
		t.Errorf("expected no request line, got %+v", recs[1].RequestLine)
	}
	if !strings.Contains(stderr.String(), "records: 2, rejected: 0, bytes sent: 2.3 kB") {
		t.Errorf("unexpected summary: %q", stderr.String())
	}
}

func TestRunFailPolicy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	in := strings.NewReader(normalLine + "\nnope\n" + minimalLine + "\n")
	err := run(Options{OnError: "fail"}, in, &stdout, &stderr)
	if !errors.Is(err, clf.ErrLineRegexDoesntMatch) {
		t.Fatalf("expected LineRegexDoesntMatch, got %v", err)
	}
	if n := len(decodeAll(t, stdout.String())); n != 1 {
		t.Errorf("expected 1 record before the error, got %d", n)
	}
}

func TestRunSkipPolicy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	in := strings.NewReader("nope\n" + minimalLine + "\n")
	if err := run(Options{OnError: "skip", Summary: true}, in, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(decodeAll(t, stdout.String())); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
	if !strings.Contains(stderr.String(), "LineRegexDoesntMatch") {
		t.Errorf("expected a warning for the skipped line, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "rejected: 1") {
		t.Errorf("expected rejected count, got %q", stderr.String())
	}
}

func TestRunStopPolicyAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")
	os.WriteFile(first, []byte(minimalLine+"\nnope\n"+normalLine+"\n"), 0644)
	os.WriteFile(second, []byte(normalLine+"\n"), 0644)

	var stdout, stderr bytes.Buffer
	err := run(Options{OnError: "stop", Files: []string{first, second}}, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("expected silent stop, got %v", err)
	}
	if n := len(decodeAll(t, stdout.String())); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestRunUnknownPolicy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(Options{OnError: "retry"}, strings.NewReader(""), &stdout, &stderr); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRunMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(Options{OnError: "fail", Files: []string{filepath.Join(t.TempDir(), "missing.log")}}, strings.NewReader(""), &stdout, &stderr)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
