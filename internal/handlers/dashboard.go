package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xHacka/combined-log-analyzer/internal/repository"
)

type DashboardHandler struct {
	Repo repository.LogRepository
	Now  func() time.Time
}

// ServeHTTP reports stats for the last 24 hours, or ?hours=N.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	window := 24 * time.Hour
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid hours: "+strconv.Quote(v))
			return
		}
		window = time.Duration(n) * time.Hour
	}
	stats, err := h.Repo.GetDashboardStats(r.Context(), now(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
