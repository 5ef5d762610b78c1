// Package config loads compiler configuration from YAML or CUE files.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Relation describes how an included relation joins its parent. Zero
// fields take conventional defaults when SQL is rendered.
type Relation struct {
	// Table is the table backing the relation; defaults to the relation name.
	Table string `yaml:"table,omitempty" json:"table,omitempty"`

	// ForeignKey is the child column pointing at the parent; defaults to
	// "<parent>_id".
	ForeignKey string `yaml:"foreign_key,omitempty" json:"foreign_key,omitempty"`

	// References is the parent column the foreign key points at; defaults
	// to "id".
	References string `yaml:"references,omitempty" json:"references,omitempty"`
}

// Config controls how raw query parameters compile.
type Config struct {
	// Resources lists filter keys that name a resource of their own rather
	// than a field of the default resource.
	Resources []string `yaml:"resources,omitempty" json:"resources,omitempty"`

	// Remap maps resource aliases to canonical resource names.
	Remap map[string]string `yaml:"remap,omitempty" json:"remap,omitempty"`

	// OptionalMarker prefixes include segments that are not required.
	OptionalMarker string `yaml:"optional_marker,omitempty" json:"optional_marker,omitempty"`

	// MaxIncludeDepth caps the number of segments in one include path.
	MaxIncludeDepth int `yaml:"max_include_depth,omitempty" json:"max_include_depth,omitempty"`

	// LenientPagination drops malformed limit/offset values instead of
	// rejecting the query.
	LenientPagination bool `yaml:"lenient_pagination,omitempty" json:"lenient_pagination,omitempty"`

	// Relations is keyed by relation name ("posts") or relation path
	// ("posts.comments"); the path entry wins.
	Relations map[string]Relation `yaml:"relations,omitempty" json:"relations,omitempty"`
}

// ValidationError reports a configuration value that cannot be used.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// ErrUnsupportedFormat is returned by Load for files that are neither YAML
// nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	for alias, target := range c.Remap {
		if strings.TrimSpace(alias) == "" {
			return &ValidationError{Field: "remap", Message: "empty alias"}
		}
		if strings.TrimSpace(target) == "" {
			return &ValidationError{Field: "remap." + alias, Message: "empty target"}
		}
	}
	if c.MaxIncludeDepth < 0 {
		return &ValidationError{Field: "max_include_depth", Message: "must not be negative"}
	}
	if strings.Contains(c.OptionalMarker, ".") {
		return &ValidationError{Field: "optional_marker", Message: "must not contain '.'"}
	}
	for _, r := range c.Resources {
		if strings.TrimSpace(r) == "" {
			return &ValidationError{Field: "resources", Message: "empty resource name"}
		}
	}
	return nil
}

// RemapFunc returns the alias resolver. Unknown names map to themselves.
func (c Config) RemapFunc() func(string) string {
	return func(name string) string {
		if target, ok := c.Remap[name]; ok {
			return target
		}
		return name
	}
}

// RelationFor returns the join settings for a relation path, preferring an
// entry for the full path over one for the last segment.
func (c Config) RelationFor(path string) (Relation, bool) {
	if r, ok := c.Relations[path]; ok {
		return r, true
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		r, ok := c.Relations[path[i+1:]]
		return r, ok
	}
	return Relation{}, false
}

// Load reads a configuration file. The format follows the extension:
// .yaml/.yml or .cue.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(data, path)
	default:
		return Config{}, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML decodes a YAML document. Unknown keys are rejected.
func ParseYAML(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// an empty document is an empty config
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseCUE evaluates a CUE document against the config schema and decodes
// the result. filename is used in error positions only.
func ParseCUE(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("compile cue: %w", err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validate cue: %w", err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode cue: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
