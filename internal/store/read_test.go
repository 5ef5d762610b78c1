package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store) []Compilation {
	t.Helper()
	var out []Compilation
	for _, c := range []Compilation{
		createTestCompilation("users", "q1", "h1"),
		createTestCompilation("posts", "q2", "h2"),
		createTestCompilation("users", "q3", "h3"),
		createTestCompilation("users", "q1", "h1"),
	} {
		stored, err := s.Append(context.Background(), c)
		require.NoError(t, err)
		out = append(out, stored)
	}
	return out
}

func TestListCompilations_Ordering(t *testing.T) {
	s := createTestStore(t)
	want := seed(t, s)

	got, err := s.ListCompilations(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestListCompilations_Filters(t *testing.T) {
	s := createTestStore(t)
	all := seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		opts ListOptions
		want []Compilation
	}{
		{"resource", ListOptions{Resource: "users"}, []Compilation{all[0], all[2], all[3]}},
		{"input hash", ListOptions{InputHash: "in-q1"}, []Compilation{all[0], all[3]}},
		{"after seq", ListOptions{AfterSeq: 2}, []Compilation{all[2], all[3]}},
		{"limit", ListOptions{Limit: 1}, []Compilation{all[0]}},
		{"combined", ListOptions{Resource: "users", AfterSeq: 1, Limit: 1}, []Compilation{all[2]}},
		{"no match", ListOptions{Resource: "tags"}, []Compilation{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListCompilations(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCompilation_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadCompilation(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
