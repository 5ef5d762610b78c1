package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const compilationColumns = `id, seq, resource, raw_query, input_hash, spec_json, spec_hash, error_code, error, compiler_version`

// ListOptions filters ListCompilations.
type ListOptions struct {
	// Resource restricts results to one default resource.
	Resource string

	// InputHash restricts results to one raw input.
	InputHash string

	// AfterSeq skips records with seq <= AfterSeq.
	AfterSeq int64

	// Limit caps the number of records; zero means no cap.
	Limit int
}

// ReadCompilation returns one record by ID.
func (s *Store) ReadCompilation(ctx context.Context, id string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+compilationColumns+` FROM compilations WHERE id = ?`, id)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("compilation %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListCompilations returns matching records with deterministic ordering:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListCompilations(ctx context.Context, opts ListOptions) ([]Compilation, error) {
	var (
		where []string
		args  []any
	)
	if opts.Resource != "" {
		where = append(where, "resource = ?")
		args = append(args, opts.Resource)
	}
	if opts.InputHash != "" {
		where = append(where, "input_hash = ?")
		args = append(args, opts.InputHash)
	}
	if opts.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, opts.AfterSeq)
	}

	query := `SELECT ` + compilationColumns + ` FROM compilations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var (
		c                                 Compilation
		specJSON, specHash, code, message sql.NullString
	)
	err := row.Scan(&c.ID, &c.Seq, &c.Resource, &c.RawQuery, &c.InputHash,
		&specJSON, &specHash, &code, &message, &c.CompilerVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Compilation{}, err
		}
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}
	c.SpecJSON = specJSON.String
	c.SpecHash = specHash.String
	c.ErrorCode = code.String
	c.Error = message.String
	return c, nil
}
