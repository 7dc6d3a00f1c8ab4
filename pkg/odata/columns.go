package odata

import (
	"fmt"
	"strings"
)

// ColumnMap resolves between the aliases exposed to API callers and the
// underlying database columns. It is built from an endpoint's ordered
// AllowedColumns list, where each entry is either "alias:db_column" or a
// bare column name that aliases itself.
type ColumnMap struct {
	order    []string
	byAlias  map[string]string
	byColumn map[string]string
}

// NewColumnMap parses an AllowedColumns list. Duplicate aliases and empty
// entries are rejected.
func NewColumnMap(allowed []string) (*ColumnMap, error) {
	m := &ColumnMap{
		byAlias:  make(map[string]string, len(allowed)),
		byColumn: make(map[string]string, len(allowed)),
	}
	for _, entry := range allowed {
		alias, column, err := splitColumnEntry(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byAlias[alias]; dup {
			return nil, fmt.Errorf("duplicate column alias %q", alias)
		}
		m.order = append(m.order, alias)
		m.byAlias[alias] = column
		m.byColumn[column] = alias
	}
	return m, nil
}

func splitColumnEntry(entry string) (alias, column string, err error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", "", fmt.Errorf("empty column entry")
	}
	if i := strings.Index(entry, ":"); i >= 0 {
		alias = strings.TrimSpace(entry[:i])
		column = strings.TrimSpace(entry[i+1:])
	} else {
		alias = entry
		column = entry
	}
	if alias == "" || column == "" {
		return "", "", fmt.Errorf("malformed column entry %q", entry)
	}
	return alias, column, nil
}

// Len returns the number of declared columns.
func (m *ColumnMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Aliases returns the aliases in declaration order.
func (m *ColumnMap) Aliases() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Column resolves an alias to its database column.
func (m *ColumnMap) Column(alias string) (string, bool) {
	if m == nil {
		return "", false
	}
	col, ok := m.byAlias[alias]
	return col, ok
}

// Alias resolves a database column back to its alias.
func (m *ColumnMap) Alias(column string) (string, bool) {
	if m == nil {
		return "", false
	}
	alias, ok := m.byColumn[column]
	return alias, ok
}

// HasAlias reports whether the alias is declared.
func (m *ColumnMap) HasAlias(alias string) bool {
	_, ok := m.Column(alias)
	return ok
}
