// Package repository provides data access for the generation ledger.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lpjform/lpj-backend/internal/models"
	"go.uber.org/zap"
)

// LedgerRepository reads and appends ledger entries. Entries are never
// updated; identifier assignment relies on the store serializing writes.
type LedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *sql.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends one entry for a durably written artifact and returns its
// assigned identifier.
func (r *LedgerRepository) Record(ctx context.Context, noRequest string, tglLPJ time.Time, filePath string) (int64, error) {
	query := `
		INSERT INTO lpj_history (no_request, tgl_lpj, file_path)
		VALUES (?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, noRequest, tglLPJ.Format("2006-01-02"), filePath)
	if err != nil {
		r.logger.Error("Failed to record ledger entry",
			zap.String("no_request", noRequest),
			zap.Error(err))
		return 0, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get assigned ledger id: %w", err)
	}

	r.logger.Info("Ledger entry recorded",
		zap.Int64("id", id),
		zap.String("no_request", noRequest),
		zap.String("file_path", filePath))
	return id, nil
}

// List returns all entries, newest first.
func (r *LedgerRepository) List(ctx context.Context) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, no_request, tgl_lpj, file_path, created_at
		FROM lpj_history
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.LedgerEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetByID returns one entry, or nil when the id is unknown.
func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	query := `
		SELECT id, no_request, tgl_lpj, file_path, created_at
		FROM lpj_history
		WHERE id = ?
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get ledger entry", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger entry %d: %w", id, err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := row.Scan(&entry.ID, &entry.NoRequest, &entry.TglLPJ, &entry.FilePath, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	return &entry, nil
}
