package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBroker backs the queue with a single database file, for single-host
// deployments where running Redis is not worth it. FIFO order comes from the
// autoincrement sequence; atomicity of Dequeue comes from a single
// DELETE..RETURNING statement, so concurrent consumers never see the same
// row. Result expiry is enforced on read and purged opportunistically on
// write, since SQLite has no native TTL.
type SQLiteBroker struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pending (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	payload BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_expiry ON results(expires_at);
`

func NewSQLite(path string) (*SQLiteBroker, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// One connection per process: the file lock serializes across
	// processes, this serializes within one and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteBroker{db: db}, nil
}

func (b *SQLiteBroker) Enqueue(ctx context.Context, payload []byte) error {
	_, err := b.db.ExecContext(ctx, "INSERT INTO pending (payload) VALUES (?)", payload)
	return err
}

func (b *SQLiteBroker) Dequeue(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `
		DELETE FROM pending
		WHERE seq = (SELECT MIN(seq) FROM pending)
		RETURNING payload
	`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *SQLiteBroker) QueueLen(ctx context.Context) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending").Scan(&n)
	return n, err
}

func (b *SQLiteBroker) PutResult(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	now := time.Now()
	if _, err := b.db.ExecContext(ctx, "DELETE FROM results WHERE expires_at <= ?", now.UnixNano()); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO results (id, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`, id, payload, now.Add(ttl).UnixNano())
	return err
}

func (b *SQLiteBroker) GetResult(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT payload FROM results WHERE id = ? AND expires_at > ?",
		id, time.Now().UnixNano()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *SQLiteBroker) Close() error {
	return b.db.Close()
}
