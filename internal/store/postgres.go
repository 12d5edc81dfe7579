package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buyerportal/internal/logger"
	"buyerportal/pkg/models"
)

const invoicesTable = "invoices"

// Schema creates the invoices table. The unique index on invoice_number is the
// upsert key; NULL numbers never conflict with each other.
const Schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id             UUID PRIMARY KEY,
	invoice_number TEXT UNIQUE,
	supplier       TEXT NOT NULL DEFAULT '',
	amount         NUMERIC(14,2) CHECK (amount >= 0),
	due_date       DATE,
	ocr_number     TEXT,
	bankgiro       TEXT,
	file_url       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'paid')),
	payout_date    DATE,
	payout_amount  NUMERIC(14,2),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK ((status = 'paid') = (payout_date IS NOT NULL AND payout_amount IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS invoices_created_at_idx ON invoices (created_at DESC);
`

var invoiceColumns = []string{
	"id", "invoice_number", "supplier", "amount", "due_date", "ocr_number", "bankgiro",
	"file_url", "status", "payout_date", "payout_amount", "created_at", "updated_at",
}

// Extracted fields refreshed by an upsert. Status and payout columns are left alone.
var upsertUpdateColumns = []string{
	"supplier", "amount", "due_date", "ocr_number", "bankgiro", "file_url", "updated_at",
}

// PoolConfig configures the pgx connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DefaultPoolConfig returns pool settings for dsn.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
	}
}

// NewPool opens a pgx pool and checks that the database answers.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	log := logger.WithComponent("postgres")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "buyerportal"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("Database connection established")

	return pool, nil
}

// PostgresStore implements InvoiceStore on PostgreSQL.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore creates a store on an open pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.WithComponent("invoice-store"),
	}
}

// Migrate creates the schema when it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info().Str("table", invoicesTable).Msg("Schema is up to date")
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *models.InvoiceRecord) (*models.InvoiceRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	sql, args, err := upsertQuery(rec).ToSql()
	if err != nil {
		return nil, err
	}

	stored, err := scanRecord(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert invoice: %w", err)
	}

	s.logger.Debug().
		Str("id", stored.ID.String()).
		Bool("natural_key", stored.HasNaturalKey()).
		Msg("Invoice upserted")

	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	return s.getOne(ctx, squirrel.Eq{"id": id}, id.String())
}

func (s *PostgresStore) GetByNumber(ctx context.Context, invoiceNumber string) (*models.InvoiceRecord, error) {
	return s.getOne(ctx, squirrel.Eq{"invoice_number": invoiceNumber}, "invoice number "+invoiceNumber)
}

func (s *PostgresStore) getOne(ctx context.Context, where squirrel.Sqlizer, what string) (*models.InvoiceRecord, error) {
	sql, args, err := squirrel.Select(invoiceColumns...).
		From(invoicesTable).
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rec, err := scanRecord(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*models.InvoiceRecord, error) {
	sql, args, err := listQuery(filter).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.InvoiceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, rec *models.InvoiceRecord, from models.Status) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if !from.CanTransitionTo(rec.Status) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, rec.Status)
	}

	sql, args, err := updateStatusQuery(rec, from).ToSql()
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: either the invoice is gone or another request moved it first.
	current, err := s.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s, not %s", models.ErrInvalidTransition, rec.ID, current.Status, from)
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := squirrel.Delete(invoicesTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func upsertQuery(rec *models.InvoiceRecord) squirrel.InsertBuilder {
	var number *string
	if rec.HasNaturalKey() {
		number = rec.InvoiceNumber
	}

	set := make([]string, len(upsertUpdateColumns))
	for i, col := range upsertUpdateColumns {
		set[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	return squirrel.Insert(invoicesTable).
		Columns(invoiceColumns...).
		Values(
			rec.ID, number, rec.Supplier, nullDecimal(rec.Amount), rec.DueDate, rec.OCRNumber, rec.Bankgiro,
			rec.FileURL, string(rec.Status), rec.PayoutDate, nullDecimal(rec.PayoutAmount), rec.CreatedAt, rec.UpdatedAt,
		).
		Suffix("ON CONFLICT (invoice_number) DO UPDATE SET " + strings.Join(set, ", ") +
			" RETURNING " + strings.Join(invoiceColumns, ", ")).
		PlaceholderFormat(squirrel.Dollar)
}

// updateStatusQuery only matches the row while it is still in status from.
func updateStatusQuery(rec *models.InvoiceRecord, from models.Status) squirrel.UpdateBuilder {
	return squirrel.Update(invoicesTable).
		Set("status", string(rec.Status)).
		Set("payout_date", rec.PayoutDate).
		Set("payout_amount", nullDecimal(rec.PayoutAmount)).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{"id": rec.ID, "status": string(from)}).
		PlaceholderFormat(squirrel.Dollar)
}

func listQuery(filter Filter) squirrel.SelectBuilder {
	q := squirrel.Select(invoiceColumns...).
		From(invoicesTable).
		OrderBy("created_at DESC", "id DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"invoice_number": pattern},
			squirrel.ILike{"supplier": pattern},
		})
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func scanRecord(row pgx.Row) (*models.InvoiceRecord, error) {
	var (
		rec          models.InvoiceRecord
		status       string
		amount       decimal.NullDecimal
		payoutAmount decimal.NullDecimal
	)
	if err := row.Scan(
		&rec.ID, &rec.InvoiceNumber, &rec.Supplier, &amount, &rec.DueDate, &rec.OCRNumber, &rec.Bankgiro,
		&rec.FileURL, &status, &rec.PayoutDate, &payoutAmount, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = models.Status(status)
	if amount.Valid {
		rec.Amount = &amount.Decimal
	}
	if payoutAmount.Valid {
		rec.PayoutAmount = &payoutAmount.Decimal
	}
	return &rec, nil
}
