package clf

import "fmt"

// Kind classifies why a line failed to parse.
type Kind string

const (
	LineEmpty               Kind = "LineEmpty"
	LineRegexDoesntMatch    Kind = "LineRegexDoesntMatch"
	RequestRegexDoesntMatch Kind = "RequestRegexDoesntMatch"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrLineEmpty               = &Error{Kind: LineEmpty}
	ErrLineRegexDoesntMatch    = &Error{Kind: LineRegexDoesntMatch}
	ErrRequestRegexDoesntMatch = &Error{Kind: RequestRegexDoesntMatch}
)

// Error is returned by ParseLine. Line is the offending input, unmodified.
type Error struct {
	Kind Kind
	Line string
}

func (e *Error) Error() string {
	return fmt.Sprintf("CombinedLogFormatError: %s '%s'", e.Kind, e.Line)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
