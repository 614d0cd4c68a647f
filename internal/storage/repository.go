package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/guttosm/isinmap/internal/domain/models"
	pq "github.com/lib/pq"
)

// SecurityRepository is the row source behind a lookup.
//
// FindByISIN returns (nil, nil) when no row matches. When several rows share
// the ISIN, the one with the lowest Line wins.
type SecurityRepository interface {
	FindByISIN(ctx context.Context, isin string) (*models.Security, error)
	Ping(ctx context.Context) error
}

// SecurityBatchWriter appends rows to a replacement in progress.
type SecurityBatchWriter interface {
	InsertSecuritiesBatch(ctx context.Context, rows []models.Security) error
}

// SecurityWriter replaces the stored security master as one unit.
//
// fill runs against an emptied destination; its rows become visible only when
// fill returns nil. Any error leaves the previous rows in place.
type SecurityWriter interface {
	ReplaceSecurities(ctx context.Context, fill func(ctx context.Context, w SecurityBatchWriter) error) error
}

// PostgresRepository serves and stores the security master in the securities table.
type PostgresRepository struct {
	db *sql.DB
}

// NewSecurityRepository returns the Postgres-backed repository. The value
// implements both SecurityRepository and SecurityWriter.
func NewSecurityRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByISIN returns the first row (by original file line) with the given ISIN.
func (r *PostgresRepository) FindByISIN(ctx context.Context, isin string) (*models.Security, error) {
	var sec models.Security
	err := r.db.QueryRowContext(ctx, `
		SELECT line, ticker, issuer, issue, isin
		FROM securities
		WHERE isin = $1
		ORDER BY line
		LIMIT 1
	`, isin).Scan(&sec.Line, &sec.Ticker, &sec.Issuer, &sec.Issue, &sec.ISIN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceSecurities empties and refills the securities table in a single
// transaction. Concurrent lookups see the old rows until the commit; TRUNCATE
// would block them on its table lock.
func (r *PostgresRepository) ReplaceSecurities(ctx context.Context, fill func(ctx context.Context, w SecurityBatchWriter) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM securities`); err != nil {
		return fmt.Errorf("clear securities: %w", err)
	}
	if err = fill(ctx, &copyWriter{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// copyWriter issues one COPY per batch on the replacement transaction.
type copyWriter struct {
	tx *sql.Tx
}

func (w *copyWriter) InsertSecuritiesBatch(ctx context.Context, rows []models.Security) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := w.tx.PrepareContext(ctx, pq.CopyIn("securities", "line", "ticker", "issuer", "issue", "isin"))
	if err != nil {
		return err
	}

	for _, s := range rows {
		if _, err := stmt.ExecContext(ctx, s.Line, s.Ticker, s.Issuer, s.Issue, s.ISIN); err != nil {
			_ = stmt.Close()
			return err
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	return stmt.Close()
}
