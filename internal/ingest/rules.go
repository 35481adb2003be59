package ingest

import (
	"path"
	"strings"

	"github.com/xHacka/combined-log-analyzer/internal/models"
)

// FilterRules drops entries that are not worth storing: own traffic,
// static assets, health checks and the like.
type FilterRules struct {
	ips      map[string]bool
	exts     map[string]bool
	methods  map[string]bool
	statuses map[int]bool
	prefixes []string
}

func NewFilterRules(ips, exts, methods []string, statuses []int, prefixes []string) FilterRules {
	f := FilterRules{
		ips:      make(map[string]bool),
		exts:     make(map[string]bool),
		methods:  make(map[string]bool),
		statuses: make(map[int]bool),
		prefixes: prefixes,
	}
	for _, ip := range ips {
		f.ips[ip] = true
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.exts[ext] = true
	}
	for _, m := range methods {
		f.methods[strings.ToUpper(m)] = true
	}
	for _, s := range statuses {
		f.statuses[s] = true
	}
	return f
}

// Skip reports whether e matches any rule.
func (f FilterRules) Skip(e models.LogEntry) bool {
	if f.ips[e.RemoteAddr] || f.statuses[e.Status] {
		return true
	}
	if e.Method != "" && f.methods[e.Method] {
		return true
	}
	if ext := strings.ToLower(path.Ext(e.Path)); ext != "" && f.exts[ext] {
		return true
	}
	for _, p := range f.prefixes {
		if p != "" && strings.HasPrefix(e.Path, p) {
			return true
		}
	}
	return false
}
