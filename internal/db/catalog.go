package db

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/claimstore/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.ClaimError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// CaptureRecord is the catalog entry of a committed capture.
type CaptureRecord struct {
	Token         string  `json:"token"`
	Partition     string  `json:"partition"`
	Extension     string  `json:"extension"`
	Mode          string  `json:"mode"`
	Size          int64   `json:"size"`
	Digest        string  `json:"digest"`
	ArchiveTarget *string `json:"archive_target,omitempty"`
	CreatedAt     int64   `json:"created_at"`
}

// RecordCapture stores a committed capture.
func RecordCapture(db *sql.DB, r *CaptureRecord) error {
	query := `
		INSERT INTO captures (
			token, partition, extension, mode, size, digest, archive_target, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		r.Token, r.Partition, r.Extension, r.Mode, r.Size, r.Digest,
		toNullString(r.ArchiveTarget), r.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetCapture retrieves a capture by token.
func GetCapture(db *sql.DB, token string) (*CaptureRecord, error) {
	query := `
		SELECT token, partition, extension, mode, size, digest, archive_target, created_at
		FROM captures
		WHERE token = ?
	`

	r, err := scanCapture(db.QueryRow(query, token))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(token)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListCaptures returns captures of a partition (yyyyMMdd), newest first.
// An empty partition lists across partitions. limit <= 0 means no limit.
func ListCaptures(db *sql.DB, partition string, limit int) ([]CaptureRecord, error) {
	query := `
		SELECT token, partition, extension, mode, size, digest, archive_target, created_at
		FROM captures
	`
	var args []any
	if partition != "" {
		query += " WHERE partition = ?"
		args = append(args, partition)
	}
	query += " ORDER BY created_at DESC, token DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := []CaptureRecord{}
	for rows.Next() {
		r, err := scanCapture(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCapture scans a single row into a CaptureRecord.
func scanCapture(row rowScanner) (*CaptureRecord, error) {
	var (
		r             CaptureRecord
		archiveTarget sql.NullString
	)
	err := row.Scan(
		&r.Token, &r.Partition, &r.Extension, &r.Mode, &r.Size, &r.Digest,
		&archiveTarget, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ArchiveTarget = fromNullString(archiveTarget)
	return &r, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique and primary key violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// Catalog records committed captures. It satisfies the claim store's
// recorder interface.
type Catalog struct {
	db *sql.DB
}

// NewCatalog returns a catalog over db.
func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// RecordCapture stores a committed capture.
func (c *Catalog) RecordCapture(r *CaptureRecord) error {
	return RecordCapture(c.db, r)
}

// GetCapture retrieves a capture by token.
func (c *Catalog) GetCapture(token string) (*CaptureRecord, error) {
	return GetCapture(c.db, token)
}

// ListCaptures returns captures of a partition, newest first.
func (c *Catalog) ListCaptures(partition string, limit int) ([]CaptureRecord, error) {
	return ListCaptures(c.db, partition, limit)
}
