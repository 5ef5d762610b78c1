package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Compilation is one recorded compilation pass. Exactly one of SpecHash and
// ErrorCode is set.
type Compilation struct {
	ID              string
	Seq             int64
	Resource        string
	RawQuery        string
	InputHash       string
	SpecJSON        string
	SpecHash        string
	ErrorCode       string
	Error           string
	CompilerVersion string
}

// Rejected reports whether the pass ended in an input error.
func (c Compilation) Rejected() bool {
	return c.ErrorCode != ""
}

// ErrIncompleteRecord is returned when a compilation has neither or both of
// a spec hash and an error code.
var ErrIncompleteRecord = errors.New("compilation must carry a spec hash or an error code")

// Append records a compilation, assigning a UUIDv7 ID when c.ID is empty
// and the next seq. Returns the stored record.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: appending a record whose
// ID already exists returns the stored row unchanged.
func (s *Store) Append(ctx context.Context, c Compilation) (Compilation, error) {
	if (c.SpecHash == "") == (c.ErrorCode == "") {
		return Compilation{}, fmt.Errorf("append compilation: %w", ErrIncompleteRecord)
	}
	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV7()).String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Compilation{}, fmt.Errorf("append compilation: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations`).Scan(&c.Seq); err != nil {
		return Compilation{}, fmt.Errorf("append compilation: next seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO compilations
		(id, seq, resource, raw_query, input_hash, spec_json, spec_hash, error_code, error, compiler_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.Seq,
		c.Resource,
		c.RawQuery,
		c.InputHash,
		nullable(c.SpecJSON),
		nullable(c.SpecHash),
		nullable(c.ErrorCode),
		nullable(c.Error),
		c.CompilerVersion,
	)
	if err != nil {
		return Compilation{}, fmt.Errorf("append compilation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Compilation{}, fmt.Errorf("append compilation: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return s.ReadCompilation(ctx, c.ID)
	}
	return c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
