package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"expensed/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound covers both a record that does not exist and one owned
	// by a different user; callers cannot tell the two apart.
	ErrNotFound = errors.New("record not found")

	ErrEmailExists = errors.New("email already registered")
)

// sortColumns maps public sort field names to columns. Anything not in
// this map was already rejected by core.ListParams.Validate.
var sortColumns = map[string]string{
	"date":      "date",
	"amount":    "amount_cents",
	"title":     "title",
	"category":  "category",
	"createdAt": "created_at",
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping verifies the database connection is still usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a new user with a zero ledger total.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, total_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		u.ID.String(), u.Name, u.Email, u.PasswordHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, total_cents, created_at, updated_at
		FROM users WHERE email = ?`, email))
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, total_cents, created_at, updated_at
		FROM users WHERE id = ?`, id.String()))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (*core.User, error) {
	var (
		u     core.User
		rawID string
	)
	err := row.Scan(&rawID, &u.Name, &u.Email, &u.PasswordHash, &u.Total.Cents, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return &u, nil
}

// LedgerTotal returns the user's running expense total.
func (r *SQLiteRepository) LedgerTotal(ctx context.Context, ownerID uuid.UUID) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT total_cents FROM users WHERE id = ?`, ownerID.String()).Scan(&cents)
	if err == sql.ErrNoRows {
		return core.Money{}, ErrNotFound
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("ledger total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// CreateExpense inserts the record and credits the owner's ledger in one
// transaction. The ledger adjustment is an atomic SQL increment, never a
// read-modify-write.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	tags, err := marshalTags(e.Tags)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, owner_id, title, amount_cents, category, description,
			date, payment_method, tags, is_recurring, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.OwnerID.String(), e.Title, e.Amount.Cents, string(e.Category),
		e.Description, e.Date.UTC(), string(e.PaymentMethod), tags, e.IsRecurring, now, now)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	if err := adjustLedger(ctx, tx, e.OwnerID, e.Amount.Cents); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"owner_id", e.OwnerID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return nil
}

// GetExpense fetches one record scoped to its owner.
func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID, id uuid.UUID) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, amount_cents, category, description,
			date, payment_method, tags, is_recurring, created_at, updated_at
		FROM expenses WHERE id = ? AND owner_id = ?`,
		id.String(), ownerID.String())
	return scanExpense(row)
}

// UpdateExpense overwrites the record with the merged result of a partial
// update and, when the amount changed, applies the compensating ledger
// delta in the same transaction. Returns ErrNotFound for missing or
// foreign records.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e *core.Expense) error {
	tags, err := marshalTags(e.Tags)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldCents int64
	err = tx.QueryRowContext(ctx,
		`SELECT amount_cents FROM expenses WHERE id = ? AND owner_id = ?`,
		e.ID.String(), e.OwnerID.String()).Scan(&oldCents)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read old amount: %w", err)
	}

	now := time.Now().UTC()
	e.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE expenses SET title = ?, amount_cents = ?, category = ?, description = ?,
			date = ?, payment_method = ?, tags = ?, is_recurring = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		e.Title, e.Amount.Cents, string(e.Category), e.Description, e.Date.UTC(),
		string(e.PaymentMethod), tags, e.IsRecurring, now,
		e.ID.String(), e.OwnerID.String())
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	if delta := e.Amount.Cents - oldCents; delta != 0 {
		if err := adjustLedger(ctx, tx, e.OwnerID, delta); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated",
		"expense_id", e.ID,
		"owner_id", e.OwnerID,
		"amount_cents", e.Amount.Cents,
		"ledger_delta_cents", e.Amount.Cents-oldCents)
	return nil
}

// DeleteExpense removes the record and debits the owner's ledger in one
// transaction. The deleted record is returned for event publication.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id uuid.UUID) (*core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, owner_id, title, amount_cents, category, description,
			date, payment_method, tags, is_recurring, created_at, updated_at
		FROM expenses WHERE id = ? AND owner_id = ?`,
		id.String(), ownerID.String())
	e, err := scanExpense(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND owner_id = ?`,
		id.String(), ownerID.String()); err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}

	if err := adjustLedger(ctx, tx, ownerID, -e.Amount.Cents); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted",
		"expense_id", e.ID,
		"owner_id", ownerID,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

// ListExpenses runs the filtered, sorted, paginated query plus the total
// count across all pages. Params are assumed validated.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID uuid.UUID, p core.ListParams) (core.ListResult, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID.String()}

	if cat, ok := p.CategoryFilter(); ok {
		where = append(where, "category = ?")
		args = append(args, string(cat))
	}
	// Both bounds required; a lone start or end date is ignored.
	if p.HasDateRange() {
		where = append(where, "date >= ? AND date <= ?")
		args = append(args, p.StartDate.UTC(), p.EndDate.UTC())
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expenses WHERE "+whereClause, args...).Scan(&total)
	if err != nil {
		return core.ListResult{}, fmt.Errorf("count expenses: %w", err)
	}

	direction := "DESC"
	if p.SortOrder == core.SortAsc {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT id, owner_id, title, amount_cents, category, description,
			date, payment_method, tags, is_recurring, created_at, updated_at
		FROM expenses WHERE %s
		ORDER BY %s %s
		LIMIT ? OFFSET ?`, whereClause, sortColumns[p.SortBy], direction)
	args = append(args, p.Limit, p.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.ListResult{}, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return core.ListResult{}, err
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return core.ListResult{}, fmt.Errorf("iterate expenses: %w", err)
	}

	return core.ListResult{
		Expenses:    expenses,
		TotalCount:  total,
		TotalPages:  core.TotalPages(total, p.Limit),
		CurrentPage: p.Page,
	}, nil
}

// Summarize groups the owner's records inside the window by category and
// computes the grand total with an independent query; the two must agree.
func (r *SQLiteRepository) Summarize(ctx context.Context, ownerID uuid.UUID, w core.Window) (core.Summary, error) {
	start, end := w.Bounds()
	summary := core.Summary{
		ByCategory: []core.CategoryTotal{},
		Period:     w.Period(),
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents), COUNT(*)
		FROM expenses
		WHERE owner_id = ? AND date >= ? AND date <= ?
		GROUP BY category
		ORDER BY SUM(amount_cents) DESC`,
		ownerID.String(), start, end)
	if err != nil {
		return summary, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			sum      int64
			count    int64
		)
		if err := rows.Scan(&category, &sum, &count); err != nil {
			return summary, fmt.Errorf("scan breakdown row: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, core.CategoryTotal{
			Category:    core.Category(category),
			TotalAmount: core.Money{Cents: sum},
			Count:       count,
			AvgAmount:   core.Money{Cents: roundedDiv(sum, count)},
		})
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate breakdown: %w", err)
	}

	var (
		totalCents sql.NullInt64
		totalCount int64
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT SUM(amount_cents), COUNT(*)
		FROM expenses
		WHERE owner_id = ? AND date >= ? AND date <= ?`,
		ownerID.String(), start, end).Scan(&totalCents, &totalCount)
	if err != nil {
		return summary, fmt.Errorf("grand total: %w", err)
	}
	summary.TotalAmount = core.Money{Cents: totalCents.Int64}
	summary.TotalCount = totalCount

	return summary, nil
}

// adjustLedger applies an atomic increment to the owner's running total.
func adjustLedger(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, deltaCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET total_cents = total_cents + ?, updated_at = ? WHERE id = ?`,
		deltaCents, time.Now().UTC(), ownerID.String())
	if err != nil {
		return fmt.Errorf("adjust ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust ledger rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*core.Expense, error) {
	var (
		e               core.Expense
		rawID, rawOwner string
		category        string
		paymentMethod   string
		rawTags         string
	)
	err := row.Scan(&rawID, &rawOwner, &e.Title, &e.Amount.Cents, &category,
		&e.Description, &e.Date, &paymentMethod, &rawTags, &e.IsRecurring,
		&e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}

	if e.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse expense id: %w", err)
	}
	if e.OwnerID, err = uuid.Parse(rawOwner); err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	e.Category = core.Category(category)
	e.PaymentMethod = core.PaymentMethod(paymentMethod)
	if err := json.Unmarshal([]byte(rawTags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.Date = e.Date.UTC()
	return &e, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

// roundedDiv returns sum/count rounded half-up, in cents.
func roundedDiv(sum, count int64) int64 {
	if count == 0 {
		return 0
	}
	return (sum + count/2) / count
}
