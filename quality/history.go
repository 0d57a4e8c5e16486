package quality

import (
	"fmt"
	"sync"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS delay_records (
	route_id      TEXT NOT NULL,
	route_name    TEXT NOT NULL DEFAULT '',
	observed_at   INTEGER NOT NULL,
	delay_seconds INTEGER NOT NULL,
	stop_id       TEXT NOT NULL,
	stop_name     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS delay_records_observed_at ON delay_records (observed_at);
`

// History is the optional append-only sqlite log of delay records, so the
// monitor's rolling window survives a restart. It is a RecordSink.
type History struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// OpenHistory opens (or creates) the history database at path.
func OpenHistory(path string) (*History, error) {
	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := sqlitex.ExecScript(conn, historySchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &History{conn: conn}, nil
}

// Append writes one record. Implements RecordSink.
func (h *History) Append(rec DelayRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sqlitex.Exec(h.conn,
		"INSERT INTO delay_records (route_id, route_name, observed_at, delay_seconds, stop_id, stop_name) VALUES (?, ?, ?, ?, ?, ?);",
		nil,
		rec.RouteID, rec.RouteName, rec.ObservedAt.Unix(), rec.DelaySeconds, rec.StopID, rec.StopName)
}

// ReplayInto loads records observed since the cutoff into the monitor,
// bypassing the sink so the replay is not re-appended. Returns the number
// of records restored.
func (h *History) ReplayInto(m *Monitor, since time.Time) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	err := sqlitex.Exec(h.conn,
		"SELECT route_id, route_name, observed_at, delay_seconds, stop_id, stop_name FROM delay_records WHERE observed_at >= ? ORDER BY observed_at;",
		func(stmt *sqlite.Stmt) error {
			m.restore(DelayRecord{
				RouteID:      stmt.ColumnText(0),
				RouteName:    stmt.ColumnText(1),
				ObservedAt:   time.Unix(stmt.ColumnInt64(2), 0),
				DelaySeconds: stmt.ColumnInt(3),
				StopID:       stmt.ColumnText(4),
				StopName:     stmt.ColumnText(5),
			})
			n++
			return nil
		},
		since.Unix())
	if err != nil {
		return n, fmt.Errorf("replay history: %w", err)
	}
	return n, nil
}

// Prune deletes records observed before the cutoff.
func (h *History) Prune(before time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sqlitex.Exec(h.conn, "DELETE FROM delay_records WHERE observed_at < ?;", nil, before.Unix())
}

// Close closes the underlying connection.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.Close()
}
