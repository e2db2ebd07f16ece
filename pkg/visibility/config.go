package visibility

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleEntry is one list element under allow/deny. It is either a bare
// pattern string or a {schema, table} mapping; the distinction matters
// because a bare string matches its table in any schema while a mapping with
// an empty schema matches only schema-less relations.
type ruleEntry struct {
	Schema *string `yaml:"schema"`
	Table  string  `yaml:"table"`

	bare string
}

func (e *ruleEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.bare = value.Value
		return nil
	}
	type plain ruleEntry
	return value.Decode((*plain)(e))
}

func (e *ruleEntry) compile() (tablePattern, error) {
	if e.bare != "" {
		table, err := newMatcher(e.bare)
		if err != nil {
			return tablePattern{}, err
		}
		return tablePattern{schemaAny: true, table: table}, nil
	}
	schemaPattern := ""
	if e.Schema != nil {
		schemaPattern = *e.Schema
	}
	schema, err := newMatcher(schemaPattern)
	if err != nil {
		return tablePattern{}, err
	}
	table, err := newMatcher(e.Table)
	if err != nil {
		return tablePattern{}, err
	}
	return tablePattern{schema: schema, table: table}, nil
}

type columnEntry struct {
	Schema       *string `yaml:"schema"`
	Table        *string `yaml:"table"`
	Column       string  `yaml:"column"`
	Action       string  `yaml:"action"`
	Mask         string  `yaml:"mask"`
	ShowInSchema *bool   `yaml:"show_in_schema"`
}

func (e *columnEntry) compile() (columnRule, error) {
	rule := columnRule{
		mask:         e.Mask,
		showInSchema: e.ShowInSchema,
	}
	switch Action(e.Action) {
	case "", ActionAllow:
		rule.action = ActionAllow
	case ActionOmit, ActionMask, ActionError:
		rule.action = Action(e.Action)
	default:
		return columnRule{}, fmt.Errorf("unknown column action %q", e.Action)
	}
	var err error
	if e.Schema != nil {
		rule.hasSchema = true
		if rule.schema, err = newMatcher(*e.Schema); err != nil {
			return columnRule{}, err
		}
	}
	if e.Table != nil {
		rule.hasTable = true
		if rule.table, err = newMatcher(*e.Table); err != nil {
			return columnRule{}, err
		}
	}
	if rule.hasSchema && !rule.hasTable {
		return columnRule{}, fmt.Errorf("column rule for %q names a schema without a table", e.Column)
	}
	if rule.column, err = newMatcher(e.Column); err != nil {
		return columnRule{}, err
	}
	return rule, nil
}

type allowDeny struct {
	Allow []ruleEntry `yaml:"allow"`
	Deny  []ruleEntry `yaml:"deny"`
}

type rulesFile struct {
	SchemaVisibility allowDeny     `yaml:"schema_visibility"`
	TableVisibility  allowDeny     `yaml:"table_visibility"`
	ColumnVisibility []columnEntry `yaml:"column_visibility"`
}

// ParseRules compiles a YAML rules document.
func ParseRules(data []byte) (*Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse visibility rules: %w", err)
	}

	rules := &Rules{}
	for _, entry := range file.SchemaVisibility.Allow {
		m, err := schemaMatcher(entry)
		if err != nil {
			return nil, err
		}
		rules.schemaAllow = append(rules.schemaAllow, m)
	}
	for _, entry := range file.SchemaVisibility.Deny {
		m, err := schemaMatcher(entry)
		if err != nil {
			return nil, err
		}
		rules.schemaDeny = append(rules.schemaDeny, m)
	}
	for _, entry := range file.TableVisibility.Allow {
		p, err := entry.compile()
		if err != nil {
			return nil, err
		}
		rules.tableAllow = append(rules.tableAllow, p)
	}
	for _, entry := range file.TableVisibility.Deny {
		p, err := entry.compile()
		if err != nil {
			return nil, err
		}
		rules.tableDeny = append(rules.tableDeny, p)
	}
	for _, entry := range file.ColumnVisibility {
		rule, err := entry.compile()
		if err != nil {
			return nil, err
		}
		rules.columns = append(rules.columns, rule)
	}
	return rules, nil
}

// schemaMatcher compiles a schema-level entry, which is always a bare
// pattern (there is no tuple form above the schema level).
func schemaMatcher(entry ruleEntry) (matcher, error) {
	if entry.bare == "" {
		return matcher{}, fmt.Errorf("schema visibility entries must be pattern strings")
	}
	return newMatcher(entry.bare)
}

// LoadRules reads and compiles a rules file. A missing path yields an empty
// rule set so a host without restrictions needs no file at all.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read visibility rules %s: %w", path, err)
	}
	return ParseRules(data)
}
