package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionsTable = "fuel_transactions"

const createTransactionsTable = `CREATE TABLE IF NOT EXISTS fuel_transactions (
	id TEXT PRIMARY KEY,
	vehicle_id TEXT NOT NULL DEFAULT '',
	driver_id TEXT NOT NULL DEFAULT '',
	card_id TEXT NOT NULL DEFAULT '',
	receipt_image_url TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	extracted_data JSONB NOT NULL,
	ocr_raw_text TEXT NOT NULL,
	ocr_confidence INTEGER NOT NULL,
	status TEXT NOT NULL,
	manual_review_required BOOLEAN NOT NULL,
	issues JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

var transactionColumns = []string{
	"id", "vehicle_id", "driver_id", "card_id", "receipt_image_url", "filename", "content_type",
	"extracted_data", "ocr_raw_text", "ocr_confidence", "status", "manual_review_required",
	"issues", "created_at", "updated_at",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresDB implements the DB interface on a Postgres (Supabase) database
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to Postgres and creates the transactions table if needed
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, createTransactionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating transactions table: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// SaveTransaction inserts a transaction or replaces the existing row
func (p *PostgresDB) SaveTransaction(ctx context.Context, t *Transaction) error {
	query, args, err := upsertTransactionQuery(t)
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID
func (p *PostgresDB) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	query, args, err := psql.Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	t, err := scanTransaction(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions newest first
func (p *PostgresDB) ListTransactions(ctx context.Context, status Status) ([]*Transaction, error) {
	query, args, err := listTransactionsQuery(status)
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return transactions, nil
}

// DeleteTransaction removes a transaction
func (p *PostgresDB) DeleteTransaction(ctx context.Context, id string) error {
	query, args, err := psql.Delete(transactionsTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func upsertTransactionQuery(t *Transaction) (string, []interface{}, error) {
	extracted, err := json.Marshal(t.ExtractedData)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling extracted data: %w", err)
	}
	issues := t.Issues
	if issues == nil {
		issues = []string{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling issues: %w", err)
	}

	return psql.Insert(transactionsTable).
		Columns(transactionColumns...).
		Values(
			t.ID, t.VehicleID, t.DriverID, t.CardID, t.ReceiptURL, t.Filename, t.ContentType,
			string(extracted), t.RawText, t.Confidence, string(t.Status), t.ManualReviewRequired,
			string(issuesJSON), t.CreatedAt, t.UpdatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			vehicle_id = EXCLUDED.vehicle_id,
			driver_id = EXCLUDED.driver_id,
			card_id = EXCLUDED.card_id,
			receipt_image_url = EXCLUDED.receipt_image_url,
			extracted_data = EXCLUDED.extracted_data,
			status = EXCLUDED.status,
			manual_review_required = EXCLUDED.manual_review_required,
			issues = EXCLUDED.issues,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
}

func listTransactionsQuery(status Status) (string, []interface{}, error) {
	query := psql.Select(transactionColumns...).
		From(transactionsTable).
		OrderBy("created_at DESC")
	if status != "" {
		query = query.Where(squirrel.Eq{"status": string(status)})
	}
	return query.ToSql()
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t         Transaction
		status    string
		extracted []byte
		issues    []byte
	)
	err := row.Scan(
		&t.ID, &t.VehicleID, &t.DriverID, &t.CardID, &t.ReceiptURL, &t.Filename, &t.ContentType,
		&extracted, &t.RawText, &t.Confidence, &status, &t.ManualReviewRequired,
		&issues, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if err := json.Unmarshal(extracted, &t.ExtractedData); err != nil {
		return nil, fmt.Errorf("unmarshaling extracted data: %w", err)
	}
	if err := json.Unmarshal(issues, &t.Issues); err != nil {
		return nil, fmt.Errorf("unmarshaling issues: %w", err)
	}
	return &t, nil
}
