package reset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sutaaa0/cashier-app-sub000/internal/db"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// Plan describes one destructive reset.
type Plan struct {
	Tables             []string // truncated together in one statement
	BaselineSQL        string   // executed after the truncate when non-empty
	PreserveMasterData bool
	BackupFilename     string
}

// Outcome is what a committed reset did.
type Outcome struct {
	RowsDeleted map[string]int64
	Log         models.ResetLogEntry
}

// DataStore applies a reset plan atomically and keeps the reset log.
type DataStore interface {
	Apply(ctx context.Context, plan Plan) (*Outcome, error)
	ListLogs(ctx context.Context, limit int) ([]models.ResetLogEntry, error)
}

const insertResetLog = `INSERT INTO reset_logs (content, backup_filename)
VALUES ($1, $2)
RETURNING id, created_at`

const selectResetLogs = `SELECT id, created_at, content, backup_filename
FROM reset_logs
ORDER BY created_at DESC, id DESC
LIMIT $1`

// PostgresStore runs the whole reset in a single transaction: either every
// table is cleared and the log entry written, or nothing changes.
type PostgresStore struct {
	db          db.TxDB
	lockTimeout time.Duration
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(database db.TxDB) *PostgresStore {
	return &PostgresStore{db: database, lockTimeout: 30 * time.Second}
}

// Apply counts, truncates and logs inside one transaction.
func (s *PostgresStore) Apply(ctx context.Context, plan Plan) (*Outcome, error) {
	if len(plan.Tables) == 0 {
		return nil, errors.New("no tables to reset")
	}
	if plan.BackupFilename == "" {
		return nil, errors.New("reset requires a pre-reset backup")
	}

	idents := make([]string, len(plan.Tables))
	for i, table := range plan.Tables {
		idents[i] = quoteTable(table)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reset transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}

	counts := make(map[string]int64, len(plan.Tables))
	for i, table := range plan.Tables {
		var n int64
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM "+idents[i]).Scan(&n); err != nil {
			return nil, fmt.Errorf("count rows in %s: %w", table, err)
		}
		counts[table] = n
	}

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+strings.Join(idents, ", ")+" RESTART IDENTITY"); err != nil {
		return nil, fmt.Errorf("truncate tables: %w", err)
	}

	if plan.BaselineSQL != "" {
		if _, err := tx.Exec(ctx, plan.BaselineSQL); err != nil {
			return nil, fmt.Errorf("apply baseline data: %w", err)
		}
	}

	entry := models.ResetLogEntry{
		Content:        Summarize(plan, counts),
		BackupFilename: plan.BackupFilename,
	}
	if err := tx.QueryRow(ctx, insertResetLog, entry.Content, entry.BackupFilename).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("write reset log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reset: %w", err)
	}

	return &Outcome{RowsDeleted: counts, Log: entry}, nil
}

// ListLogs returns up to limit log entries, newest first.
func (s *PostgresStore) ListLogs(ctx context.Context, limit int) ([]models.ResetLogEntry, error) {
	rows, err := s.db.Query(ctx, selectResetLogs, limit)
	if err != nil {
		return nil, fmt.Errorf("list reset logs: %w", err)
	}
	defer rows.Close()

	entries := []models.ResetLogEntry{}
	for rows.Next() {
		var e models.ResetLogEntry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Content, &e.BackupFilename); err != nil {
			return nil, fmt.Errorf("scan reset log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// quoteTable quotes a table name, keeping an optional schema prefix.
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// Summarize renders the human readable log content of a reset.
func Summarize(plan Plan, counts map[string]int64) string {
	var b strings.Builder

	if plan.PreserveMasterData {
		b.WriteString("Transactional data cleared, master data preserved.")
	} else {
		b.WriteString("Full reset, master data cleared.")
		if plan.BaselineSQL != "" {
			b.WriteString(" Baseline data restored.")
		}
	}

	fmt.Fprintf(&b, " Pre-reset backup: %s.", plan.BackupFilename)

	var total int64
	parts := make([]string, 0, len(plan.Tables))
	for _, table := range plan.Tables {
		total += counts[table]
		parts = append(parts, fmt.Sprintf("%s=%d", table, counts[table]))
	}
	fmt.Fprintf(&b, " Rows deleted: %s (total %d).", strings.Join(parts, ", "), total)

	return b.String()
}
