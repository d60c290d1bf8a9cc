package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// Submission records one accepted order submission keyed by the
// client-generated idempotency key. A retried submission after a transport
// error is answered from this log instead of re-hitting the backend, so a
// duplicate order can never be created.
type Submission struct {
	IdempotencyKey string
	SessionID      string
	OrderID        int64
	OrderKey       string
	Status         string
	Total          decimal.Decimal
	Currency       string
	CreatedAt      time.Time
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// RepoInterface is what the checkout orchestrator consumes.
type RepoInterface interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*Submission, error)
	Record(ctx context.Context, submission *Submission) error
	Close() error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "submissions_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (*Submission, error) {
	query := `SELECT idempotency_key, session_id, order_id, order_key, status, total, currency, created_at
	          FROM order_submissions WHERE idempotency_key = $1`

	var s Submission
	var total string
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&s.IdempotencyKey, &s.SessionID, &s.OrderID, &s.OrderKey, &s.Status, &total, &s.Currency, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	s.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored total: %w", err)
	}
	return &s, nil
}

func (r *Repository) Record(ctx context.Context, submission *Submission) error {
	query := `INSERT INTO order_submissions (idempotency_key, session_id, order_id, order_key, status, total, currency, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	          ON CONFLICT (idempotency_key) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		submission.IdempotencyKey,
		submission.SessionID,
		submission.OrderID,
		submission.OrderKey,
		submission.Status,
		submission.Total.String(),
		submission.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
