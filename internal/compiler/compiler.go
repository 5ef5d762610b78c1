package compiler

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/jsonapiq/internal/canonical"
	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/filter"
	"github.com/roach88/jsonapiq/internal/include"
	"github.com/roach88/jsonapiq/internal/input"
	"github.com/roach88/jsonapiq/internal/ordering"
	"github.com/roach88/jsonapiq/internal/queryspec"
)

// Version identifies the compilation rules. It is stored with every logged
// compilation; bump it when the same input may compile differently.
const Version = "1"

// Recognized top-level parameters.
const (
	ParamFilter  = "filter"
	ParamInclude = "include"
	ParamFields  = "fields"
	ParamSort    = "sort"
	ParamOrder   = "order"
	ParamLimit   = "limit"
	ParamOffset  = "offset"
)

// Compiler turns query parameters into QuerySpecs.
//
// A Compiler holds only immutable configuration; every Compile call builds
// its own pass state. Safe for concurrent use.
type Compiler struct {
	cfg     config.Config
	remap   func(string) string
	logger  *slog.Logger
	passIDs IDGenerator
	lenient bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for per-pass debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithPassIDGenerator replaces the UUIDv7 pass ID generator.
func WithPassIDGenerator(g IDGenerator) Option {
	return func(c *Compiler) {
		c.passIDs = g
	}
}

// WithLenientPagination drops malformed limit/offset values with a warning
// instead of rejecting the query.
func WithLenientPagination() Option {
	return func(c *Compiler) {
		c.lenient = true
	}
}

// New creates a Compiler for cfg.
func New(cfg config.Config, opts ...Option) *Compiler {
	c := &Compiler{
		cfg:     cfg,
		remap:   cfg.RemapFunc(),
		logger:  slog.Default(),
		passIDs: UUIDv7Generator{},
		lenient: cfg.LenientPagination,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile runs one compilation pass over params rooted at defaultResource
// (an alias is resolved through the remap table).
//
// The pass:
//  1. normalizes filters into per-resource field maps
//  2. builds the default resource's predicate
//  3. builds the include forest, attaching projections and predicates
//  4. attaches the root projection
//  5. compiles sort terms ("sort" wins over "order")
//  6. parses limit and offset
//
// OR-routed conditions from every visited resource collect into the root
// predicate's OR list.
func (c *Compiler) Compile(ctx context.Context, params *input.Map, defaultResource string) (*queryspec.QuerySpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := c.newPass(params, c.remap(defaultResource))
	if err != nil {
		return nil, err
	}

	root, err := p.predicate(p.resource)
	if err != nil {
		return nil, err
	}

	forest := include.NewForest(include.Options{
		OptionalMarker: c.cfg.OptionalMarker,
		MaxDepth:       c.cfg.MaxIncludeDepth,
	})
	for _, tok := range p.includes {
		if err := forest.Add(tok, p.attachment); err != nil {
			return nil, err
		}
	}

	order, err := c.compileOrder(params, p.resource)
	if err != nil {
		return nil, err
	}

	limit, err := c.parseBound(p, ParamLimit)
	if err != nil {
		return nil, err
	}
	offset, err := c.parseBound(p, ParamOffset)
	if err != nil {
		return nil, err
	}

	spec := &queryspec.QuerySpec{
		Where:      root,
		Include:    forest.Nodes(),
		Attributes: p.rootFields,
		Order:      order,
		Limit:      limit,
		Offset:     offset,
	}
	if len(p.or) > 0 {
		spec.Where.Or = p.or
	}

	for _, r := range p.canon.Resources() {
		if _, ok := p.built[r]; !ok {
			p.log.Debug("filter not applied", "resource", r)
		}
	}
	p.log.Debug("compiled query",
		"resource", p.resource,
		"fields", len(spec.Where.Fields),
		"or", len(spec.Where.Or),
		"includes", forest.Len(),
		"order", len(order))

	return spec, nil
}

// pass is the private working state of one Compile call.
type pass struct {
	log        *slog.Logger
	resource   string
	includes   []string
	canon      *filter.Canonical
	projection map[string][]string
	rootFields []string
	built      map[string]queryspec.Where
	or         []queryspec.OrEntry
	params     *input.Map
}

func (c *Compiler) newPass(params *input.Map, resource string) (*pass, error) {
	p := &pass{
		log:        c.logger.With("pass", c.passIDs.Generate()),
		resource:   resource,
		projection: make(map[string][]string),
		built:      make(map[string]queryspec.Where),
		params:     params,
	}

	if v, ok := params.Get(ParamInclude); ok {
		p.includes = splitList(v.Strings())
	}

	// include paths are filter targets too: include=posts makes
	// filter[posts][title] a posts filter
	declared := append([]string(nil), c.cfg.Resources...)
	segmenter := include.NewForest(include.Options{OptionalMarker: c.cfg.OptionalMarker})
	for _, tok := range p.includes {
		segs := segmenter.Segments(tok)
		for i := range segs {
			declared = append(declared, strings.Join(segs[:i+1], "."))
		}
	}

	raw, _ := params.Get(ParamFilter)
	if !raw.IsZero() && raw.Kind() != input.KindMap {
		return nil, &filter.MalformedFilterError{Field: ParamFilter, Message: "expected filter[<resource>][<field>] keys"}
	}
	p.canon = filter.Normalize(raw.Map(), filter.NormalizeOptions{
		DefaultResource: resource,
		Resources:       declared,
		Remap:           c.remap,
	})

	fields, _ := params.Get(ParamFields)
	switch fields.Kind() {
	case input.KindString, input.KindList:
		p.rootFields = splitList(fields.Strings())
	case input.KindMap:
		m := fields.Map()
		for _, key := range m.Keys() {
			v, _ := m.Get(key)
			list := splitList(v.Strings())
			if canonical.FoldEqual(c.remap(key), resource) {
				p.rootFields = list
				continue
			}
			p.projection[key] = list
		}
	}

	p.log.Debug("pass started",
		"resource", resource,
		"filters", len(p.canon.Resources()),
		"includes", len(p.includes))
	return p, nil
}

// predicate returns the AND predicate for a resource path, building it on
// first use. The path's OR delta merges into the pass exactly once.
func (p *pass) predicate(path string) (queryspec.Where, error) {
	if w, ok := p.built[path]; ok {
		return w, nil
	}
	where, delta, err := filter.Build(p.canon, filter.Scope{
		Path:            path,
		Default:         path == p.resource,
		DefaultResource: p.resource,
	})
	if err != nil {
		return queryspec.Where{}, err
	}
	p.or = filter.MergeOr(p.or, delta)
	p.built[path] = where
	return where, nil
}

// attachment is the include.Lookup for this pass.
func (p *pass) attachment(path string) (include.Attachment, error) {
	where, err := p.predicate(path)
	if err != nil {
		return include.Attachment{}, err
	}
	return include.Attachment{
		Attributes: p.projection[path],
		Where:      &where,
	}, nil
}

// compileOrder reads sort, falling back to order when sort is absent or
// holds no terms.
func (c *Compiler) compileOrder(params *input.Map, resource string) ([]queryspec.SortTerm, error) {
	if v, ok := params.Get(ParamSort); ok && !v.IsZero() {
		terms, err := ordering.Compile(v, resource, c.remap)
		if err != nil || len(terms) > 0 {
			return terms, err
		}
	}
	v, _ := params.Get(ParamOrder)
	return ordering.Compile(v, resource, c.remap)
}

// parseBound reads limit or offset. Absent means unbounded.
func (c *Compiler) parseBound(p *pass, name string) (*int, error) {
	v, ok := p.params.Get(name)
	if !ok {
		return nil, nil
	}
	var raw string
	if list := v.Strings(); len(list) > 0 {
		raw = strings.TrimSpace(list[len(list)-1])
	}

	n, err := strconv.Atoi(raw)
	if err == nil && n >= 0 {
		return &n, nil
	}
	if c.lenient {
		p.log.Warn("ignoring malformed pagination bound", "param", name, "value", raw)
		return nil, nil
	}
	return nil, &MalformedIntegerError{Param: name, Value: raw}
}

// splitList flattens comma-delimited entries, trimming and dropping blanks.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
