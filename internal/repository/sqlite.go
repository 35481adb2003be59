package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"

	"github.com/xHacka/combined-log-analyzer/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time REAL NOT NULL,
	remote_addr TEXT,
	remote_user TEXT,
	request TEXT,
	method TEXT,
	path TEXT,
	query TEXT,
	protocol TEXT,
	status INTEGER,
	bytes INTEGER,
	referer TEXT,
	user_agent TEXT,
	batch_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_log_entries_time ON log_entries(time);
CREATE INDEX IF NOT EXISTS idx_log_entries_status ON log_entries(status);
CREATE INDEX IF NOT EXISTS idx_log_entries_remote_addr ON log_entries(remote_addr);
CREATE INDEX IF NOT EXISTS idx_log_entries_path ON log_entries(path);
CREATE INDEX IF NOT EXISTS idx_log_entries_batch_id ON log_entries(batch_id);
`

const selectColumns = `id, time, remote_addr, remote_user, request, method, path, query, protocol, status, bytes, referer, user_agent, batch_id, created_at`

var sortColumns = map[string]bool{
	"time": true, "status": true, "path": true, "remote_addr": true, "bytes": true, "method": true,
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) InsertBatch(ctx context.Context, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO log_entries (time, remote_addr, remote_user, request, method, path, query, protocol, status, bytes, referer, user_agent, batch_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, e.Time, e.RemoteAddr, e.RemoteUser, e.Request, e.Method, e.Path, e.Query, e.Protocol, e.Status, e.Bytes, e.Referer, e.UserAgent, e.BatchID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Query(ctx context.Context, filters QueryFilters, limit, offset int) ([]models.LogEntry, int, error) {
	var args []any
	var where []string

	if filters.TimeFrom != nil {
		where = append(where, "time >= ?")
		args = append(args, epoch(*filters.TimeFrom))
	}
	if filters.TimeTo != nil {
		where = append(where, "time <= ?")
		args = append(args, epoch(*filters.TimeTo))
	}
	if filters.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filters.Status)
	}
	if filters.RemoteAddr != "" {
		where = append(where, "remote_addr = ?")
		args = append(args, filters.RemoteAddr)
	}
	if filters.PathContains != "" {
		where = append(where, "path LIKE ?")
		args = append(args, "%"+filters.PathContains+"%")
	}
	if filters.Method != "" {
		where = append(where, "method = ?")
		args = append(args, filters.Method)
	}
	if filters.RefererContains != "" {
		where = append(where, "referer LIKE ?")
		args = append(args, "%"+filters.RefererContains+"%")
	}
	if filters.UserAgentContains != "" {
		where = append(where, "user_agent LIKE ?")
		args = append(args, "%"+filters.UserAgentContains+"%")
	}
	if filters.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, filters.BatchID)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	orderBy := "time"
	if sortColumns[filters.SortBy] {
		orderBy = filters.SortBy
	}
	dir := "ASC"
	if filters.SortDesc {
		dir = "DESC"
	}

	// Count total
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM log_entries"+whereClause+
			" ORDER BY "+orderBy+" "+dir+", id "+dir+" LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var createdAt sql.NullTime
		var batchID sql.NullString
		err := rows.Scan(&e.ID, &e.Time, &e.RemoteAddr, &e.RemoteUser, &e.Request, &e.Method, &e.Path, &e.Query, &e.Protocol, &e.Status, &e.Bytes, &e.Referer, &e.UserAgent, &batchID, &createdAt)
		if err != nil {
			return nil, 0, err
		}
		e.BatchID = batchID.String
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *SQLiteRepository) GetDashboardStats(ctx context.Context, now time.Time, window time.Duration) (*DashboardStats, error) {
	sinceEpoch := epoch(now.Add(-window))
	sevenDaysEpoch := epoch(now.Add(-7 * 24 * time.Hour))
	stats := &DashboardStats{WindowHours: int(window / time.Hour)}

	var errCount int64
	counters := []struct {
		query string
		arg   float64
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM log_entries WHERE time >= ?", sinceEpoch, &stats.TotalRequests},
		{"SELECT COUNT(*) FROM log_entries WHERE time >= ?", sevenDaysEpoch, &stats.TotalRequests7d},
		{"SELECT COUNT(*) FROM log_entries WHERE time >= ? AND status >= 400", sinceEpoch, &errCount},
		{"SELECT COUNT(DISTINCT remote_addr) FROM log_entries WHERE time >= ?", sinceEpoch, &stats.UniqueIPs},
		{"SELECT COALESCE(SUM(bytes), 0) FROM log_entries WHERE time >= ?", sinceEpoch, &stats.BytesSent},
	}
	for _, c := range counters {
		if err := r.db.QueryRowContext(ctx, c.query, c.arg).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	if stats.TotalRequests > 0 {
		stats.ErrorRate = float64(errCount) / float64(stats.TotalRequests) * 100
	}
	stats.BytesSentHuman = humanize.Bytes(uint64(stats.BytesSent))

	// Requests by hour (last 7d)
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d %H:00', datetime(time, 'unixepoch')) as hour, COUNT(*) as cnt
		FROM log_entries WHERE time >= ?
		GROUP BY hour ORDER BY hour
	`, sevenDaysEpoch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, err
		}
		stats.RequestsByHour = append(stats.RequestsByHour, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Status distribution
	rows2, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM log_entries WHERE time >= ? GROUP BY status ORDER BY status", sinceEpoch)
	if err != nil {
		return nil, err
	}
	defer rows2.Close()
	for rows2.Next() {
		var sc StatusCount
		if err := rows2.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		stats.StatusDistribution = append(stats.StatusDistribution, sc)
	}
	if err := rows2.Err(); err != nil {
		return nil, err
	}

	if stats.TopPaths, err = r.top(ctx, "path", sinceEpoch); err != nil {
		return nil, err
	}
	if stats.TopReferers, err = r.top(ctx, "referer", sinceEpoch); err != nil {
		return nil, err
	}
	if stats.TopUserAgents, err = r.top(ctx, "user_agent", sinceEpoch); err != nil {
		return nil, err
	}
	return stats, nil
}

// top returns the ten most frequent non-empty values of column. column is
// never user input.
func (r *SQLiteRepository) top(ctx context.Context, column string, sinceEpoch float64) ([]TopCount, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM log_entries WHERE time >= ? AND COALESCE("+column+", '') NOT IN ('', '-')"+
			" GROUP BY "+column+" ORDER BY COUNT(*) DESC, "+column+" LIMIT 10",
		sinceEpoch,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopCount
	for rows.Next() {
		var tc TopCount
		if err := rows.Scan(&tc.Value, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM log_entries WHERE time < ?", epoch(t))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
