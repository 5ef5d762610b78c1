// Package ordering compiles sort parameters into sort terms.
package ordering

import (
	"fmt"
	"strings"

	"github.com/roach88/jsonapiq/internal/canonical"
	"github.com/roach88/jsonapiq/internal/input"
	"github.com/roach88/jsonapiq/internal/queryspec"
)

// InvalidSortError rejects a sort term with an empty field or an unknown
// direction.
type InvalidSortError struct {
	Term    string
	Message string
}

func (e *InvalidSortError) Error() string {
	return fmt.Sprintf("%s: sort term %q: %s", e.Code(), e.Term, e.Message)
}

// Code implements queryspec.CodedError.
func (e *InvalidSortError) Code() queryspec.ErrorCode { return queryspec.CodeInvalidSort }

// Is matches queryspec.ErrInvalidQuery.
func (e *InvalidSortError) Is(target error) bool { return target == queryspec.ErrInvalidQuery }

// Compile parses a sort parameter in either accepted shape:
//
//	sort=-createdAt,posts.title         string shape
//	sort[posts][title]=desc             map shape
//
// In the string shape a leading '-' sorts descending and a dotted term
// names a relation path. In the map shape resource keys are remapped and
// the default resource is omitted from the path. Terms keep input order.
func Compile(v input.Value, defaultResource string, remap func(string) string) ([]queryspec.SortTerm, error) {
	if remap == nil {
		remap = func(s string) string { return s }
	}
	switch v.Kind() {
	case input.KindString, input.KindList:
		return compileList(v.Strings())
	case input.KindMap:
		return compileMap(v.Map(), defaultResource, remap)
	}
	return nil, nil
}

func compileList(raw []string) ([]queryspec.SortTerm, error) {
	var terms []queryspec.SortTerm
	for _, chunk := range raw {
		for _, term := range strings.Split(chunk, ",") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			dir := queryspec.Asc
			name := term
			if strings.HasPrefix(name, "-") {
				dir = queryspec.Desc
				name = name[1:]
			}
			segs := strings.Split(name, ".")
			field := segs[len(segs)-1]
			if field == "" {
				return nil, &InvalidSortError{Term: term, Message: "empty field"}
			}
			st := queryspec.SortTerm{Field: field, Direction: dir}
			if len(segs) > 1 {
				st.Path = segs[:len(segs)-1]
			}
			terms = append(terms, st)
		}
	}
	return terms, nil
}

func compileMap(m *input.Map, defaultResource string, remap func(string) string) ([]queryspec.SortTerm, error) {
	var terms []queryspec.SortTerm
	for _, key := range m.Keys() {
		val, _ := m.Get(key)
		resource := remap(key)

		// sort[name]=desc names a field of the default resource;
		// sort[posts.title]=desc folds the prefix into its resource
		if val.Kind() != input.KindMap {
			dir, err := parseDirection(key, val.Str())
			if err != nil {
				return nil, err
			}
			st := queryspec.SortTerm{Field: key, Direction: dir}
			if i := strings.LastIndex(key, "."); i >= 0 {
				st.Field = key[i+1:]
				st.Path = relationPath(remap(key[:i]), defaultResource)
			}
			if st.Field == "" {
				return nil, &InvalidSortError{Term: key, Message: "empty field"}
			}
			terms = append(terms, st)
			continue
		}

		path := relationPath(resource, defaultResource)
		fields := val.Map()
		for _, field := range fields.Keys() {
			fv, _ := fields.Get(field)
			dir, err := parseDirection(key+"."+field, fv.Str())
			if err != nil {
				return nil, err
			}
			st := queryspec.SortTerm{Field: field, Direction: dir}
			if len(path) > 0 {
				st.Path = append([]string(nil), path...)
			}
			terms = append(terms, st)
		}
	}
	return terms, nil
}

// relationPath splits a resource into its relation path, nil for the
// default resource.
func relationPath(resource, defaultResource string) []string {
	if resource == "" || canonical.FoldEqual(resource, defaultResource) {
		return nil
	}
	return strings.Split(resource, ".")
}

func parseDirection(term, raw string) (queryspec.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc":
		return queryspec.Asc, nil
	case "desc":
		return queryspec.Desc, nil
	}
	return "", &InvalidSortError{Term: term, Message: fmt.Sprintf("direction %q is not asc or desc", raw)}
}
