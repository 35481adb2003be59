package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

type errorBody struct {
	Error string   `json:"error"`
	Kind  clf.Kind `json:"kind,omitempty"`
	Line  *string  `json:"line,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func parseErrorBody(err error) (errorBody, bool) {
	var perr *clf.Error
	if !errors.As(err, &perr) {
		return errorBody{}, false
	}
	line := perr.Line
	return errorBody{Error: perr.Error(), Kind: perr.Kind, Line: &line}, true
}
