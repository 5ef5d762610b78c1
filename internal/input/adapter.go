package input

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrConflictingKey is returned when a bracketed key addresses a node both as
// a leaf and as a map (filter[a]=1&filter[a][b]=2).
var ErrConflictingKey = errors.New("conflicting query keys")

// ParseQuery decodes a raw URL query string into a query-input map.
//
// Bracketed keys nest (fields[posts]=title), a trailing [] always appends
// (include[]=a&include[]=b) and repeated keys collect into lists. A leading
// '?' is ignored. Key order follows first appearance in raw.
func ParseQuery(raw string) (*Map, error) {
	root := NewMap()
	raw = strings.TrimPrefix(raw, "?")
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("decode value of %q: %w", k, err)
		}
		if err := assign(root, k, []string{v}); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// FromValues builds a query-input map from already-decoded url.Values.
// url.Values carries no order, so keys are visited in sorted order.
func FromValues(values url.Values) (*Map, error) {
	root := NewMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := assign(root, k, values[k]); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Event is the query-carrying subset of an API-gateway style cloud-function
// event.
type Event struct {
	QueryStringParameters           map[string]string   `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string `json:"multiValueQueryStringParameters"`
}

// FromEvent builds a query-input map from a cloud-function event. Values are
// already percent-decoded by the platform. Multi-value parameters win over
// their single-value counterpart when both are present.
func FromEvent(ev Event) (*Map, error) {
	values := make(url.Values, len(ev.QueryStringParameters))
	for k, v := range ev.QueryStringParameters {
		values[k] = []string{v}
	}
	for k, vs := range ev.MultiValueQueryStringParameters {
		if len(vs) > 0 {
			values[k] = vs
		}
	}
	return FromValues(values)
}

// assign stores values at the bracket path named by key.
func assign(root *Map, key string, values []string) error {
	path, appendLeaf := splitKey(key)
	if len(path) == 0 {
		return nil
	}

	node := root
	for _, seg := range path[:len(path)-1] {
		cur, ok := node.Get(seg)
		switch {
		case !ok:
			child := NewMap()
			node.Set(seg, Nested(child))
			node = child
		case cur.Kind() == KindMap:
			node = cur.Map()
		default:
			return fmt.Errorf("key %q: %q is already a value: %w", key, seg, ErrConflictingKey)
		}
	}

	leaf := path[len(path)-1]
	if cur, ok := node.Get(leaf); ok && cur.Kind() == KindMap {
		return fmt.Errorf("key %q: %q is already a map: %w", key, leaf, ErrConflictingKey)
	}
	if appendLeaf {
		if _, ok := node.Get(leaf); !ok {
			node.Set(leaf, List(values...))
			return nil
		}
	}
	for _, v := range values {
		node.Append(leaf, v)
	}
	return nil
}

// splitKey splits "filter[users][age]" into ["filter", "users", "age"].
// A trailing "[]" is dropped and reported as an append marker. Unbalanced
// brackets leave the remainder as part of the last segment.
func splitKey(key string) ([]string, bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		if key == "" {
			return nil, false
		}
		return []string{key}, false
	}

	path := []string{key[:open]}
	rest := key[open:]
	appendLeaf := false
	for len(rest) > 0 {
		if rest[0] != '[' {
			path[len(path)-1] += rest
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			path[len(path)-1] += rest
			break
		}
		seg := rest[1:end]
		rest = rest[end+1:]
		if seg == "" {
			if len(rest) == 0 {
				appendLeaf = true
			}
			continue
		}
		path = append(path, seg)
	}
	return path, appendLeaf
}
