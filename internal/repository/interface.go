package repository

import (
	"context"
	"time"

	"github.com/xHacka/combined-log-analyzer/internal/models"
)

type QueryFilters struct {
	TimeFrom          *time.Time
	TimeTo            *time.Time
	Status            *int
	RemoteAddr        string
	PathContains      string
	Method            string
	RefererContains   string
	UserAgentContains string
	BatchID           string
	SortBy            string // time, status, path, remote_addr, bytes, method
	SortDesc          bool
}

type DashboardStats struct {
	// Window-scoped figures cover [now-window, now]; the 7d total and
	// RequestsByHour always cover the last seven days.
	WindowHours        int           `json:"window_hours"`
	TotalRequests      int64         `json:"total_requests"`
	TotalRequests7d    int64         `json:"total_requests_7d"`
	ErrorRate          float64       `json:"error_rate"` // 4xx+5xx percentage
	UniqueIPs          int64         `json:"unique_ips"`
	BytesSent          int64         `json:"bytes_sent"`
	BytesSentHuman     string        `json:"bytes_sent_human"`
	RequestsByHour     []HourCount   `json:"requests_by_hour"`
	StatusDistribution []StatusCount `json:"status_distribution"`
	TopPaths           []TopCount    `json:"top_paths"`
	TopReferers        []TopCount    `json:"top_referers"`
	TopUserAgents      []TopCount    `json:"top_user_agents"`
}

type HourCount struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

type StatusCount struct {
	Status int   `json:"status"`
	Count  int64 `json:"count"`
}

type TopCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type LogRepository interface {
	InsertBatch(ctx context.Context, entries []models.LogEntry) error
	Query(ctx context.Context, filters QueryFilters, limit, offset int) ([]models.LogEntry, int, error)
	GetDashboardStats(ctx context.Context, now time.Time, window time.Duration) (*DashboardStats, error)
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}
