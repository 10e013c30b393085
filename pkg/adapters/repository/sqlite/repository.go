package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
	_ "modernc.org/sqlite" // Local SQLite driver
)

// VisitRepository is the durable SQL dedup backend. Local files use the
// modernc driver; libsql:// and wss:// URLs go to Turso.
type VisitRepository struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

type Option func(*VisitRepository)

func WithClock(now func() time.Time) Option {
	return func(r *VisitRepository) { r.now = now }
}

func NewVisitRepository(ctx context.Context, dbURL string, retention time.Duration, opts ...Option) (*VisitRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// one writer at a time, transactions queue in the pool instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &VisitRepository{db: db, retention: retention, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS visit_records (
		visit_key TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visit_records_expires_at ON visit_records(expires_at);

	CREATE TABLE IF NOT EXISTS visit_states (
		visit_key TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (visit_key, state)
	);
	`
	_, err := db.ExecContext(ctx, query)
	return err
}

// TryRecordFirstVisit runs the check-and-set in one transaction: an expired
// record is dropped, the record row anchors the expiry on first insert, and
// the state row decides whether this visit is new.
func (r *VisitRepository) TryRecordFirstVisit(ctx context.Context, destination, origin, state string) (first bool, err error) {
	key := domain.NewVisitKey(origin, destination).String()
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", domain.ErrBackendUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM visit_records WHERE visit_key = ? AND expires_at <= ?`, key, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("%w: expire record: %v", domain.ErrBackendUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM visit_states WHERE visit_key = ?`, key); err != nil {
			return false, fmt.Errorf("%w: expire states: %v", domain.ErrBackendUnavailable, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO visit_records (visit_key, expires_at) VALUES (?, ?)`,
		key, now.Add(r.retention).UnixMilli()); err != nil {
		return false, fmt.Errorf("%w: insert record: %v", domain.ErrBackendUnavailable, err)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO visit_states (visit_key, state, created_at) VALUES (?, ?, ?)`,
		key, state, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("%w: insert state: %v", domain.ErrBackendUnavailable, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", domain.ErrBackendUnavailable, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", domain.ErrBackendUnavailable, err)
	}
	return inserted == 1, nil
}

// PurgeExpired deletes records past their retention window and their states.
func (r *VisitRepository) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := r.now().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM visit_states WHERE visit_key IN (
			SELECT visit_key FROM visit_records WHERE expires_at <= ?
		)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM visit_records WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Count returns the number of tracked destinations and visitor states.
func (r *VisitRepository) Count(ctx context.Context) (records, states int64, err error) {
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visit_records`).Scan(&records); err != nil {
		return 0, 0, err
	}
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visit_states`).Scan(&states); err != nil {
		return 0, 0, err
	}
	return records, states, nil
}

func (r *VisitRepository) Close() error {
	return r.db.Close()
}
