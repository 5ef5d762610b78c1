package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/querysql"
)

// Scenario is one compilation test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Resource is the default resource the query is compiled for.
	Resource string `yaml:"resource"`

	// Query is the raw HTTP query string, without the leading '?'.
	Query string `yaml:"query"`

	// Config is the compiler configuration. Nil means the zero Config.
	Config *config.Config `yaml:"config,omitempty"`

	// Dialect selects the SQL dialect for expect.sql. Defaults to sqlite.
	Dialect string `yaml:"dialect,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect holds the expected compilation outcome. Nil fields are not checked.
type Expect struct {
	Where      any    `yaml:"where,omitempty"`
	Include    any    `yaml:"include,omitempty"`
	Attributes any    `yaml:"attributes,omitempty"`
	Order      any    `yaml:"order,omitempty"`
	Limit      *int   `yaml:"limit,omitempty"`
	Offset     *int   `yaml:"offset,omitempty"`
	ErrorCode  string `yaml:"error_code,omitempty"`
	SQL        string `yaml:"sql,omitempty"`
	Args       []any  `yaml:"args,omitempty"`
}

// Rejects reports whether the scenario expects the query to be rejected.
func (e Expect) Rejects() bool {
	return e.ErrorCode != ""
}

// LoadScenario decodes one scenario file. Unknown keys are errors, so a
// misspelled "expects:" fails instead of silently checking nothing.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	var scenario Scenario
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := scenario.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", s.Name, prev, p)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) validate() error {
	for _, req := range []struct{ key, val string }{
		{"name", s.Name},
		{"description", s.Description},
		{"resource", s.Resource},
	} {
		if req.val == "" {
			return fmt.Errorf("%s is required", req.key)
		}
	}

	e := s.Expect
	if e.Rejects() && (e.Where != nil || e.Include != nil || e.Attributes != nil ||
		e.Order != nil || e.Limit != nil || e.Offset != nil || e.SQL != "") {
		return fmt.Errorf("expect.error_code cannot be combined with other expectations")
	}
	if e.SQL == "" && e.Args != nil {
		return fmt.Errorf("expect.args requires expect.sql")
	}

	if s.Dialect != "" {
		if _, err := querysql.ParseDialect(s.Dialect); err != nil {
			return err
		}
	}
	if s.Config != nil {
		if err := s.Config.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
