// Package include builds the inclusion forest from dotted relation paths.
//
// Nodes live in a single arena slice and refer to their children by index,
// so sibling lists can grow while a path is being consumed without any
// pointer into the arena going stale.
package include

import (
	"fmt"
	"strings"

	"github.com/roach88/jsonapiq/internal/queryspec"
)

const (
	// DefaultOptionalMarker prefixes a relation that is not required
	// (an outer join): include=posts.*author
	DefaultOptionalMarker = "*"

	// DefaultMaxDepth bounds the number of segments in one include path.
	DefaultMaxDepth = 16
)

// UnboundedRecursionError rejects an include path deeper than MaxDepth.
type UnboundedRecursionError struct {
	Path  string
	Depth int
	Max   int
}

func (e *UnboundedRecursionError) Error() string {
	return fmt.Sprintf("%s: include path %q has %d segments, limit is %d", e.Code(), e.Path, e.Depth, e.Max)
}

// Code implements queryspec.CodedError.
func (e *UnboundedRecursionError) Code() queryspec.ErrorCode {
	return queryspec.CodeUnboundedRecursion
}

// Is matches queryspec.ErrInvalidQuery.
func (e *UnboundedRecursionError) Is(target error) bool { return target == queryspec.ErrInvalidQuery }

// Attachment is the projection and predicate registered for one relation
// path. Zero fields mean "nothing registered".
type Attachment struct {
	Attributes []string
	Where      *queryspec.Where
}

// Lookup resolves the attachment for an accumulated relation path such as
// "posts" or "posts.comments". It is called once per path segment visit.
type Lookup func(path string) (Attachment, error)

// Options configures a Forest.
type Options struct {
	// OptionalMarker is the prefix that marks a relation as not required.
	OptionalMarker string

	// MaxDepth is the maximum number of segments in one path.
	MaxDepth int
}

type node struct {
	relation   string
	required   bool
	attributes []string
	where      *queryspec.Where
	children   []int
}

// Forest accumulates include paths into deduplicated relation trees.
// A Forest belongs to one compilation pass and is not safe for concurrent use.
type Forest struct {
	opts  Options
	nodes []node
	roots []int
}

// NewForest creates an empty forest. Zero options take their defaults.
func NewForest(opts Options) *Forest {
	if opts.OptionalMarker == "" {
		opts.OptionalMarker = DefaultOptionalMarker
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Forest{opts: opts}
}

// Segments splits an include token into clean relation names, dropping
// optional markers and empty segments.
func (f *Forest) Segments(token string) []string {
	var out []string
	for _, seg := range strings.Split(strings.TrimSpace(token), ".") {
		name, _ := f.stripMarker(strings.TrimSpace(seg))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Add merges one dotted include path into the forest, consuming one
// segment per step. Relations already present at a level are merged rather
// than duplicated.
func (f *Forest) Add(token string, lookup Lookup) error {
	var segs []string
	for _, seg := range strings.Split(strings.TrimSpace(token), ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return nil
	}
	if len(segs) > f.opts.MaxDepth {
		return &UnboundedRecursionError{Path: token, Depth: len(segs), Max: f.opts.MaxDepth}
	}
	return f.add(-1, segs, "", lookup)
}

// add consumes segs[0] under parent (-1 for the roots) and recurses into
// the matched or created node with the remaining path.
func (f *Forest) add(parent int, segs []string, accumulated string, lookup Lookup) error {
	name, required := f.stripMarker(segs[0])
	if name == "" {
		if len(segs) == 1 {
			return nil
		}
		return f.add(parent, segs[1:], accumulated, lookup)
	}

	path := name
	if accumulated != "" {
		path = accumulated + "." + name
	}

	incoming := node{relation: name, required: required}
	if lookup != nil {
		att, err := lookup(path)
		if err != nil {
			return fmt.Errorf("include %q: %w", path, err)
		}
		incoming.attributes = att.Attributes
		if !att.Where.IsEmpty() {
			incoming.where = att.Where
		}
	}

	idx := f.find(parent, name)
	if idx < 0 {
		f.nodes = append(f.nodes, incoming)
		idx = len(f.nodes) - 1
		if parent < 0 {
			f.roots = append(f.roots, idx)
		} else {
			f.nodes[parent].children = append(f.nodes[parent].children, idx)
		}
	} else {
		f.nodes[idx] = mergeNode(f.nodes[idx], incoming)
	}

	if len(segs) == 1 {
		return nil
	}
	return f.add(idx, segs[1:], path, lookup)
}

// find returns the index of the sibling named relation under parent, or -1.
func (f *Forest) find(parent int, relation string) int {
	siblings := f.roots
	if parent >= 0 {
		siblings = f.nodes[parent].children
	}
	for _, i := range siblings {
		if f.nodes[i].relation == relation {
			return i
		}
	}
	return -1
}

func (f *Forest) stripMarker(seg string) (string, bool) {
	if strings.HasPrefix(seg, f.opts.OptionalMarker) {
		return strings.TrimPrefix(seg, f.opts.OptionalMarker), false
	}
	return seg, true
}

// mergeNode folds a re-visit of a relation into the existing node. The
// first visit decides required; a later projection or predicate replaces
// the earlier one; children are kept.
func mergeNode(existing, incoming node) node {
	merged := existing
	if incoming.attributes != nil {
		merged.attributes = incoming.attributes
	}
	if incoming.where != nil {
		merged.where = incoming.where
	}
	return merged
}

// Len returns the number of root relations.
func (f *Forest) Len() int {
	return len(f.roots)
}

// Nodes materializes the forest in insertion order.
func (f *Forest) Nodes() []queryspec.IncludeNode {
	return f.materialize(f.roots)
}

func (f *Forest) materialize(idxs []int) []queryspec.IncludeNode {
	if len(idxs) == 0 {
		return nil
	}
	out := make([]queryspec.IncludeNode, 0, len(idxs))
	for _, i := range idxs {
		n := f.nodes[i]
		out = append(out, queryspec.IncludeNode{
			Relation:   n.relation,
			Required:   n.required,
			Attributes: n.attributes,
			Where:      n.where,
			Include:    f.materialize(n.children),
		})
	}
	return out
}
