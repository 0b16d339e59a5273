// Package storage persists transactions and users in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mycontrol/internal/core"

	_ "modernc.org/sqlite"
)

// dueLayout keeps due dates lexically ordered so range filters work on TEXT.
const dueLayout = "2006-01-02 15:04:05"

const transactionColumns = `id, description, amount_cents, category, type, status,
	due_date, paid_date, recurrence, created_by, updated_by, created_at, updated_at`

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts t and fills its ID and timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, t *core.Transaction) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(description, amount_cents, category, type, status, due_date, paid_date,
		 recurrence, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Description, t.Amount.Cents, t.Category, string(t.Type), string(t.Status),
		formatDue(t.DueDate), formatPaid(t.PaidDate), string(t.Recurrence),
		t.CreatedBy, t.UpdatedBy, formatStamp(now), formatStamp(now))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"due_date", formatDue(t.DueDate))
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// Update overwrites every mutable column of t.
func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		description = ?, amount_cents = ?, category = ?, type = ?, status = ?,
		due_date = ?, paid_date = ?, recurrence = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		t.Description, t.Amount.Cents, t.Category, string(t.Type), string(t.Status),
		formatDue(t.DueDate), formatPaid(t.PaidDate), string(t.Recurrence),
		t.UpdatedBy, formatStamp(r.now().UTC()), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return expectOne(res, t.ID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return expectOne(res, id)
}

// List returns the transactions matching f, newest due date first.
func (r *SQLiteRepository) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	if from, to, ok := f.DueWindow(r.now()); ok {
		where = append(where, "due_date BETWEEN ? AND ?")
		args = append(args, formatDue(from), formatDue(to))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`,
		core.NormalizeEmail(email)).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.CreatedAt, err = parseStamp(created); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	if _, err := r.GetUserByEmail(ctx, u.Email); err == nil {
		return core.ErrUserExists
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return err
	}

	now := r.now().UTC()
	email := core.NormalizeEmail(u.Email)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		email, u.Name, u.PasswordHash, formatStamp(now))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read user id: %w", err)
	}
	u.ID, u.Email, u.CreatedAt = id, email, now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                     core.Transaction
		typ, status, rec      string
		due, created, updated string
		paid                  sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Description, &t.Amount.Cents, &t.Category, &typ, &status,
		&due, &paid, &rec, &t.CreatedBy, &t.UpdatedBy, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	t.Type, t.Status, t.Recurrence = core.Type(typ), core.Status(status), core.Recurrence(rec)

	var err error
	if t.DueDate, err = time.Parse(dueLayout, due); err != nil {
		return core.Transaction{}, fmt.Errorf("parse due_date %q: %w", due, err)
	}
	if paid.Valid {
		p, err := parseStamp(paid.String)
		if err != nil {
			return core.Transaction{}, err
		}
		t.PaidDate = &p
	}
	if t.CreatedAt, err = parseStamp(created); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = parseStamp(updated); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// formatDue stores the calendar components of d, dropping its zone.
func formatDue(d time.Time) string {
	return time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), 0, time.UTC).Format(dueLayout)
}

func formatPaid(p *time.Time) any {
	if p == nil {
		return nil
	}
	return formatStamp(*p)
}

func formatStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
