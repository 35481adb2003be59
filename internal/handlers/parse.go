package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

const maxParseBody = 1 << 20

type ParseHandler struct{}

type parseResult struct {
	Line   int         `json:"line"`
	Record *clf.Record `json:"record,omitempty"`
	Error  *errorBody  `json:"error,omitempty"`
}

// ServeHTTP parses the request body with clf.ParseLine. A single line
// answers with the record or a 422; several lines answer with one result
// per line, blank lines included.
func (h *ParseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxParseBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	text := strings.TrimSuffix(string(body), "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	if len(lines) == 1 {
		rec, err := clf.ParseLine(lines[0])
		if err != nil {
			eb, _ := parseErrorBody(err)
			writeJSON(w, http.StatusUnprocessableEntity, eb)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	results := make([]parseResult, len(lines))
	for i, line := range lines {
		results[i].Line = i + 1
		rec, err := clf.ParseLine(line)
		if err != nil {
			eb, _ := parseErrorBody(err)
			results[i].Error = &eb
			continue
		}
		results[i].Record = &rec
	}
	writeJSON(w, http.StatusOK, results)
}
