package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsIDAndSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, createTestCompilation("users", "a=1", "h1"))
	require.NoError(t, err)
	second, err := s.Append(ctx, createTestCompilation("users", "a=2", "h2"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)

	id, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestAppend_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rejected := Compilation{
		Resource:        "users",
		RawQuery:        "limit=x",
		InputHash:       "in",
		ErrorCode:       "MALFORMED_INTEGER",
		Error:           `MALFORMED_INTEGER: limit "x" is not a non-negative integer`,
		CompilerVersion: "1",
	}
	stored, err := s.Append(ctx, rejected)
	require.NoError(t, err)
	assert.True(t, stored.Rejected())

	got, err := s.ReadCompilation(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Empty(t, got.SpecJSON)
	assert.Empty(t, got.SpecHash)
}

func TestAppend_IdempotentByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := createTestCompilation("users", "a=1", "h1")
	c.ID = "fixed-id"
	first, err := s.Append(ctx, c)
	require.NoError(t, err)

	c.SpecHash = "different"
	again, err := s.Append(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, first, again, "duplicate IDs keep the stored row")

	all, err := s.ListCompilations(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAppend_RejectsIncompleteRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	neither := createTestCompilation("users", "", "")
	_, err := s.Append(ctx, neither)
	assert.True(t, errors.Is(err, ErrIncompleteRecord))

	both := createTestCompilation("users", "", "h")
	both.ErrorCode = "X"
	_, err = s.Append(ctx, both)
	assert.True(t, errors.Is(err, ErrIncompleteRecord))
}
