package include

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonapiq/internal/operator"
	"github.com/roach88/jsonapiq/internal/queryspec"
)

func addAll(t *testing.T, f *Forest, lookup Lookup, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		require.NoError(t, f.Add(tok, lookup))
	}
}

func TestForest_SingleRelation(t *testing.T) {
	f := NewForest(Options{})
	addAll(t, f, nil, "posts")

	assert.Equal(t, []queryspec.IncludeNode{
		{Relation: "posts", Required: true},
	}, f.Nodes())
}

func TestForest_SharedPrefixMerges(t *testing.T) {
	f := NewForest(Options{})
	addAll(t, f, nil, "posts.comments", "posts.*author")

	assert.Equal(t, []queryspec.IncludeNode{
		{
			Relation: "posts",
			Required: true,
			Include: []queryspec.IncludeNode{
				{Relation: "comments", Required: true},
				{Relation: "author", Required: false},
			},
		},
	}, f.Nodes())
}

func TestForest_SiblingRelationsUnique(t *testing.T) {
	f := NewForest(Options{})
	addAll(t, f, nil, "a.b", "a.c", "a", "a.b.d", "e")

	nodes := f.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].Relation)
	assert.Equal(t, "e", nodes[1].Relation)

	a := nodes[0]
	require.Len(t, a.Include, 2)
	assert.Equal(t, "b", a.Include[0].Relation)
	assert.Equal(t, "c", a.Include[1].Relation)
	require.Len(t, a.Include[0].Include, 1)
	assert.Equal(t, "d", a.Include[0].Include[0].Relation)
}

func TestForest_OptionalRoot(t *testing.T) {
	f := NewForest(Options{})
	addAll(t, f, nil, "*profile")

	nodes := f.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "profile", nodes[0].Relation)
	assert.False(t, nodes[0].Required)
}

func TestForest_FirstVisitDecidesRequired(t *testing.T) {
	f := NewForest(Options{})
	addAll(t, f, nil, "posts", "*posts")

	assert.True(t, f.Nodes()[0].Required)
}

func TestForest_CustomMarker(t *testing.T) {
	f := NewForest(Options{OptionalMarker: "?"})
	addAll(t, f, nil, "posts.?author")

	author := f.Nodes()[0].Include[0]
	assert.Equal(t, "author", author.Relation)
	assert.False(t, author.Required)
}

func TestForest_LookupSeesAccumulatedPaths(t *testing.T) {
	var seen []string
	lookup := func(path string) (Attachment, error) {
		seen = append(seen, path)
		return Attachment{}, nil
	}

	f := NewForest(Options{})
	addAll(t, f, lookup, "posts.*comments.author", "posts")

	assert.Equal(t, []string{"posts", "posts.comments", "posts.comments.author", "posts"}, seen)
}

func TestForest_AttachesProjectionAndPredicate(t *testing.T) {
	where := &queryspec.Where{Fields: map[string]queryspec.FieldPredicate{
		"body": {operator.Like: "%spam%"},
	}}
	lookup := func(path string) (Attachment, error) {
		switch path {
		case "posts":
			return Attachment{Attributes: []string{"id", "title"}}, nil
		case "posts.comments":
			return Attachment{Where: where}, nil
		}
		return Attachment{}, nil
	}

	f := NewForest(Options{})
	addAll(t, f, lookup, "posts.comments")

	posts := f.Nodes()[0]
	assert.Equal(t, []string{"id", "title"}, posts.Attributes)
	assert.Nil(t, posts.Where)
	assert.Equal(t, where, posts.Include[0].Where)
}

func TestForest_EmptyPredicateNotAttached(t *testing.T) {
	lookup := func(string) (Attachment, error) {
		return Attachment{Where: &queryspec.Where{Fields: map[string]queryspec.FieldPredicate{}}}, nil
	}
	f := NewForest(Options{})
	addAll(t, f, lookup, "posts")

	assert.Nil(t, f.Nodes()[0].Where)
}

func TestForest_LaterAttachmentWins(t *testing.T) {
	calls := 0
	lookup := func(string) (Attachment, error) {
		calls++
		return Attachment{Attributes: []string{fmt.Sprintf("v%d", calls)}}, nil
	}
	f := NewForest(Options{})
	addAll(t, f, lookup, "posts", "posts")

	assert.Equal(t, []string{"v2"}, f.Nodes()[0].Attributes)
}

func TestForest_LookupErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	f := NewForest(Options{})
	err := f.Add("posts.comments", func(path string) (Attachment, error) {
		if path == "posts.comments" {
			return Attachment{}, boom
		}
		return Attachment{}, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "posts.comments")
}

func TestForest_MaxDepth(t *testing.T) {
	f := NewForest(Options{MaxDepth: 3})
	require.NoError(t, f.Add("a.b.c", nil))

	err := f.Add("a.b.c.d", nil)
	var rerr *UnboundedRecursionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 4, rerr.Depth)
	assert.Equal(t, 3, rerr.Max)
	assert.ErrorIs(t, err, queryspec.ErrInvalidQuery)
}

func TestForest_DefaultMaxDepthRejectsPathological(t *testing.T) {
	f := NewForest(Options{})
	deep := strings.Repeat("a.", 10000) + "a"

	err := f.Add(deep, nil)
	var rerr *UnboundedRecursionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, DefaultMaxDepth, rerr.Max)
	assert.Equal(t, 0, f.Len())
}

func TestForest_BlankSegmentsIgnored(t *testing.T) {
	f := NewForest(Options{})
	addAll(t, f, nil, " posts..comments ", "", "  ")

	nodes := f.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "comments", nodes[0].Include[0].Relation)
}

func TestForest_Segments(t *testing.T) {
	f := NewForest(Options{})
	assert.Equal(t, []string{"posts", "author"}, f.Segments("posts.*author"))
	assert.Nil(t, f.Segments(""))
}
