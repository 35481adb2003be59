package handlers

import (
	"net/http"

	"github.com/xHacka/combined-log-analyzer/internal/ingest"
)

type UploadHandler struct {
	Ingester *ingest.Ingester
}

type uploadResponse struct {
	ingest.Result
	Error *errorBody `json:"error,omitempty"`
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("logfile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded or invalid form: "+err.Error())
		return
	}
	defer file.Close()

	res, err := h.Ingester.IngestReader(r.Context(), file)
	if err != nil {
		if eb, ok := parseErrorBody(err); ok {
			writeJSON(w, http.StatusUnprocessableEntity, uploadResponse{Result: res, Error: &eb})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to ingest: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Result: res})
}
