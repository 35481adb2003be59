package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

const timeLocalLayout = "02/Jan/2006:15:04:05 -0700"

// LogEntry is the stored, typed form of a combined-format line.
type LogEntry struct {
	ID         int64     `json:"id"`
	Time       float64   `json:"time"` // epoch seconds from $time_local
	RemoteAddr string    `json:"remote_addr"`
	RemoteUser string    `json:"remote_user"`
	Request    string    `json:"request"` // raw, may be empty
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query"`
	Protocol   string    `json:"protocol"`
	Status     int       `json:"status"`
	Bytes      int64     `json:"bytes"`
	Referer    string    `json:"referer"`
	UserAgent  string    `json:"user_agent"`
	BatchID    string    `json:"batch_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromRecord types the raw fields of rec. It fails on timestamps the
// grammar admits but time.Parse rejects, and on byte counts beyond int64.
func FromRecord(rec clf.Record) (LogEntry, error) {
	ts, err := time.Parse(timeLocalLayout, rec.TimeLocal())
	if err != nil {
		return LogEntry{}, fmt.Errorf("time_local %q: %w", rec.TimeLocal(), err)
	}

	e := LogEntry{
		Time:       float64(ts.UnixNano()) / 1e9,
		RemoteAddr: rec.RemoteAddr,
		RemoteUser: rec.RemoteUser,
		Request:    rec.Request,
		Referer:    rec.HTTPReferer,
		UserAgent:  rec.HTTPUserAgent,
	}
	if rec.HasRequestLine() {
		e.Method = rec.RequestLine.Method
		e.Path, e.Query, _ = strings.Cut(rec.RequestLine.Path, "?")
		e.Protocol = "HTTP/" + rec.RequestLine.HTTPVersion
	}
	if s, err := strconv.Atoi(rec.Status); err == nil {
		e.Status = s
	}
	if rec.BodyBytesSent != "-" {
		b, err := strconv.ParseInt(rec.BodyBytesSent, 10, 64)
		if err != nil {
			return LogEntry{}, fmt.Errorf("body_bytes_sent %q: %w", rec.BodyBytesSent, err)
		}
		e.Bytes = b
	}
	e.CreatedAt = time.Now()
	return e, nil
}

// Timestamp returns Time as a time.Time.
func (e LogEntry) Timestamp() time.Time {
	sec := int64(e.Time)
	return time.Unix(sec, int64((e.Time-float64(sec))*1e9))
}
