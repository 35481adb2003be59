package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xHacka/combined-log-analyzer/internal/models"
	"github.com/xHacka/combined-log-analyzer/internal/repository"
)

const pageSize = 50

type QueryHandler struct {
	Repo repository.LogRepository
}

type QueryResponse struct {
	Entries []models.LogEntry `json:"entries"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Pages   int               `json:"pages"`
	PrevURL string            `json:"prev_url,omitempty"`
	NextURL string            `json:"next_url,omitempty"`
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := parseQueryFilters(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := 1
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}

	offset := (page - 1) * pageSize
	entries, total, err := h.Repo.Query(r.Context(), filters, pageSize, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}

	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}

	resp := QueryResponse{Entries: entries, Total: total, Page: page, Pages: pages}
	if page > 1 {
		resp.PrevURL = pageURL(r.URL.Path, q, page-1)
	}
	if page < pages {
		resp.NextURL = pageURL(r.URL.Path, q, page+1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func pageURL(path string, base url.Values, page int) string {
	q := make(url.Values)
	for k, v := range base {
		if k != "page" {
			q[k] = v
		}
	}
	q.Set("page", strconv.Itoa(page))
	return path + "?" + q.Encode()
}

type badParam struct {
	name, value string
}

func (e *badParam) Error() string {
	return "invalid " + e.name + ": " + strconv.Quote(e.value)
}

func parseQueryFilters(q url.Values) (repository.QueryFilters, error) {
	rf := repository.QueryFilters{
		RemoteAddr:        q.Get("remote_addr"),
		PathContains:      q.Get("path"),
		Method:            strings.ToUpper(q.Get("method")),
		RefererContains:   q.Get("referer"),
		UserAgentContains: q.Get("user_agent"),
		BatchID:           q.Get("batch_id"),
		SortBy:            q.Get("sort"),
		SortDesc:          q.Get("order") == "desc",
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"time_from", &rf.TimeFrom}, {"time_to", &rf.TimeTo}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := parseFormTime(v)
		if err != nil {
			return rf, &badParam{p.name, v}
		}
		*p.dst = &t
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return rf, &badParam{"status", s}
		}
		rf.Status = &n
	}
	return rf, nil
}

func parseFormTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04", v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
