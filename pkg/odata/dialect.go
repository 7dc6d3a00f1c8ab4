package odata

import (
	"fmt"
	"strings"
)

// Param is one ordered parameter binding of a compiled statement. Name is
// the bare placeholder name ("p0", "p1", ...); drivers that bind by position
// ignore it.
type Param struct {
	Name  string
	Value any
}

// Statement is a compiled, parameterised SQL statement. Params are ordered
// to match placeholder order in SQL.
type Statement struct {
	SQL    string
	Params []Param
}

// Values returns the parameter values in binding order.
func (s *Statement) Values() []any {
	out := make([]any, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.Value
	}
	return out
}

// Dialect abstracts the SQL flavour differences the compiler cares about:
// identifier quoting, placeholder syntax, and paging clauses.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	// Placeholder returns the placeholder text for the i-th (0-based) parameter.
	Placeholder(i int) string
	// Paging renders the paging clause for skip rows and top rows; top < 0
	// means unbounded.
	Paging(skip, top int) string
	// PagingRequiresOrder reports whether the paging clause is only valid
	// after an ORDER BY.
	PagingRequiresOrder() bool
}

// DialectFor returns the dialect registered under the given driver name.
// Recognised names: sqlserver, mssql, postgres, pgx, sqlite.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlserver", "mssql":
		return SQLServer{}, nil
	case "postgres", "pgx", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", driver)
	}
}

// SQLServer is the default dialect: bracketed identifiers, @pN placeholders,
// OFFSET/FETCH paging.
type SQLServer struct{}

func (SQLServer) Name() string { return "sqlserver" }

func (SQLServer) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (SQLServer) Placeholder(i int) string {
	return fmt.Sprintf("@p%d", i)
}

func (SQLServer) Paging(skip, top int) string {
	if top < 0 {
		return fmt.Sprintf("OFFSET %d ROWS", skip)
	}
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", skip, top)
}

func (SQLServer) PagingRequiresOrder() bool { return true }

// Postgres quotes with double quotes and binds $1-style placeholders.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i+1)
}

func (Postgres) Paging(skip, top int) string {
	if top < 0 {
		return fmt.Sprintf("OFFSET %d", skip)
	}
	if skip > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", top, skip)
	}
	return fmt.Sprintf("LIMIT %d", top)
}

func (Postgres) PagingRequiresOrder() bool { return false }

// SQLite quotes like Postgres and binds bare ? placeholders.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Paging(skip, top int) string {
	if top < 0 {
		// SQLite requires LIMIT before OFFSET; -1 means no limit.
		return fmt.Sprintf("LIMIT -1 OFFSET %d", skip)
	}
	if skip > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", top, skip)
	}
	return fmt.Sprintf("LIMIT %d", top)
}

func (SQLite) PagingRequiresOrder() bool { return false }
