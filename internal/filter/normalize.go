package filter

import (
	"strings"

	"github.com/roach88/jsonapiq/internal/canonical"
	"github.com/roach88/jsonapiq/internal/input"
)

// NormalizeOptions controls how raw filter keys resolve to resources.
type NormalizeOptions struct {
	// DefaultResource is the (already remapped) resource the query is rooted at.
	DefaultResource string

	// Resources lists names that are filter targets in their own right.
	// Other non-dotted keys are fields of the default resource.
	Resources []string

	// Remap resolves a resource alias to its canonical name. Nil means
	// identity.
	Remap func(string) string
}

// Canonical is the per-resource filter map: resource path -> field -> raw
// value. Resource and field order follow first appearance in the input.
type Canonical struct {
	order  []string
	fields map[string]*input.Map
}

// Resources returns resource paths in encounter order.
func (c *Canonical) Resources() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Fields returns the field map registered for a resource path, or nil.
func (c *Canonical) Fields(resource string) *input.Map {
	if c == nil {
		return nil
	}
	return c.fields[resource]
}

// Has reports whether any filter is registered for the resource path.
func (c *Canonical) Has(resource string) bool {
	return c.Fields(resource).Len() > 0
}

func (c *Canonical) set(resource, field string, v input.Value) {
	m, ok := c.fields[resource]
	if !ok {
		m = input.NewMap()
		c.fields[resource] = m
		c.order = append(c.order, resource)
	}
	m.Set(field, v)
}

// Normalize reshapes the raw filter input into a Canonical map.
//
// For every raw key, after remapping:
//   - a map value under the default resource, a declared resource or a
//     dotted relation path registers its fields under that path:
//     filter[posts.comments][body]=x -> "posts.comments" / body
//   - a map value under any other key is an explicit operator map for a
//     field of the default resource: filter[email][like]=x -> users / email
//   - a scalar or list value under a dotted key splits off its trailing
//     segment as the field: filter[posts.title]=x -> "posts" / title
//   - a scalar or list value under a plain key is a field of the default
//     resource: filter[name]=bob -> users / name
//
// Keys resolving to the same resource merge; a repeated field keeps the
// last value.
func Normalize(raw *input.Map, opts NormalizeOptions) *Canonical {
	c := &Canonical{fields: make(map[string]*input.Map)}
	remap := opts.Remap
	if remap == nil {
		remap = func(s string) string { return s }
	}

	for _, rawKey := range raw.Keys() {
		val, _ := raw.Get(rawKey)
		key := remap(rawKey)
		isDefault := canonical.FoldEqual(key, opts.DefaultResource)
		if isDefault {
			key = opts.DefaultResource
		}
		dotted := strings.Contains(key, ".")

		if val.Kind() == input.KindMap {
			if isDefault || dotted || declared(opts.Resources, key) {
				fields := val.Map()
				for _, f := range fields.Keys() {
					fv, _ := fields.Get(f)
					c.set(key, f, fv)
				}
				continue
			}
			c.set(opts.DefaultResource, key, val)
			continue
		}

		if dotted {
			dot := strings.LastIndexByte(key, '.')
			resource := key[:dot]
			if canonical.FoldEqual(resource, opts.DefaultResource) {
				resource = opts.DefaultResource
			}
			c.set(resource, key[dot+1:], val)
			continue
		}
		c.set(opts.DefaultResource, key, val)
	}
	return c
}

func declared(resources []string, key string) bool {
	for _, r := range resources {
		if r == key {
			return true
		}
	}
	return false
}
