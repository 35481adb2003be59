package clf

import (
	"bufio"
	"fmt"
	"io"
	"iter"
)

// Lines longer than this make the scanner fail with bufio.ErrTooLong.
const maxLineSize = 1 << 20

// ErrorHandler decides what a Stream does after a parse error: true skips
// the line, false ends the stream without reporting an error.
type ErrorHandler func(err *Error) bool

// SkipErrors drops every malformed line.
func SkipErrors(*Error) bool { return true }

// StopOnError ends the stream at the first malformed line.
func StopOnError(*Error) bool { return false }

// ParsePolicy maps a policy name from config or flags to a handler.
// "fail" returns a nil handler, which makes the stream yield the error.
func ParsePolicy(name string) (ErrorHandler, error) {
	switch name {
	case "fail":
		return nil, nil
	case "skip", "":
		return SkipErrors, nil
	case "stop":
		return StopOnError, nil
	}
	return nil, fmt.Errorf("unknown error policy %q (want fail, skip or stop)", name)
}

// Stream applies ParseLine to a sequence of lines.
type Stream struct {
	onError ErrorHandler
}

// NewStream returns a Stream using onError. A nil handler makes the first
// parse error fatal: it is yielded once and the sequence ends.
func NewStream(onError ErrorHandler) *Stream {
	return &Stream{onError: onError}
}

// Records parses lines in order. Empty lines are dropped before parsing and
// never reach the error handler. Input is pulled one line at a time, so
// breaking out of the range stops consumption of lines immediately.
func (s *Stream) Records(lines iter.Seq[string]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for line := range lines {
			if len(line) == 0 {
				continue
			}
			rec, perr := parse(line)
			if perr != nil {
				if s.onError == nil {
					yield(Record{}, perr)
					return
				}
				if s.onError(perr) {
					continue
				}
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Lines splits r into lines without their terminators. The returned func
// reports the scanner's error once the sequence is exhausted.
func Lines(r io.Reader) (iter.Seq[string], func() error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	seq := func(yield func(string) bool) {
		for sc.Scan() {
			if !yield(sc.Text()) {
				return
			}
		}
	}
	return seq, sc.Err
}
