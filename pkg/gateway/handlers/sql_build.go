package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
	"github.com/portway-io/portway/pkg/odata"
)

// namedParam is one resolved procedure parameter.
type namedParam struct {
	name  string
	value any
}

// bindArgs converts compiled parameters into driver arguments. SQL Server
// binds by name because the statements carry @pN placeholders; the other
// dialects bind positionally.
func bindArgs(d odata.Dialect, params []odata.Param) []any {
	args := make([]any, len(params))
	named := d.Name() == "sqlserver"
	for i, p := range params {
		if named {
			args[i] = sql.Named(p.Name, p.Value)
		} else {
			args[i] = p.Value
		}
	}
	return args
}

// qualified renders schema.object with dialect quoting.
func qualified(d odata.Dialect, schema, object string) string {
	if schema == "" {
		return d.QuoteIdent(object)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(object)
}

// projection renders the full allow-list as "db AS alias" pairs, or * when
// the endpoint declares no columns.
func projection(d odata.Dialect, cols *odata.ColumnMap) string {
	if cols == nil || cols.Len() == 0 {
		return "*"
	}
	parts := make([]string, 0, cols.Len())
	for _, alias := range cols.Aliases() {
		db, _ := cols.Column(alias)
		parts = append(parts, d.QuoteIdent(db)+" AS "+d.QuoteIdent(alias))
	}
	return strings.Join(parts, ", ")
}

// dbNames translates body aliases to database column names.
func dbNames(spec *endpoint.SQLSpec, aliases []string) []string {
	cols := spec.Columns()
	out := make([]string, len(aliases))
	for i, alias := range aliases {
		if db, ok := cols.Column(alias); ok {
			out[i] = db
		} else {
			out[i] = alias
		}
	}
	return out
}

// buildInsert emits INSERT for the dialect. SQL Server batches a
// SELECT SCOPE_IDENTITY() behind the insert; Postgres appends RETURNING
// when the endpoint has a primary key.
func buildInsert(d odata.Dialect, spec *endpoint.SQLSpec, aliases []string, vals []any) (*odata.Statement, error) {
	if len(aliases) == 0 {
		return nil, gateway.BadRequest("Request body has no insertable columns")
	}
	cols := spec.Columns()

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(qualified(d, spec.Schema, spec.ObjectName))
	sb.WriteString(" (")
	for i, alias := range aliases {
		db, ok := cols.Column(alias)
		if !ok {
			return nil, gateway.BadRequest("Unknown column '%s'", alias)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(db))
	}
	sb.WriteString(") VALUES (")

	params := make([]odata.Param, 0, len(vals))
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Placeholder(i))
		params = append(params, odata.Param{Name: fmt.Sprintf("p%d", i), Value: bindable(v)})
	}
	sb.WriteString(")")

	switch d.Name() {
	case "sqlserver":
		sb.WriteString("; SELECT SCOPE_IDENTITY() AS ")
		sb.WriteString(d.QuoteIdent("Id"))
	case "postgres":
		if spec.PrimaryKey != "" {
			if db, ok := cols.Column(spec.PrimaryKey); ok {
				sb.WriteString(" RETURNING ")
				sb.WriteString(d.QuoteIdent(db))
			}
		}
	}

	return &odata.Statement{SQL: sb.String(), Params: params}, nil
}

// buildUpdate emits UPDATE … SET … WHERE pk = @pN.
func buildUpdate(d odata.Dialect, spec *endpoint.SQLSpec, aliases []string, vals []any, id any) (*odata.Statement, error) {
	cols := spec.Columns()
	pkColumn, ok := cols.Column(spec.PrimaryKey)
	if !ok {
		return nil, gateway.BadRequest("Primary key '%s' is not an allowed column", spec.PrimaryKey)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(qualified(d, spec.Schema, spec.ObjectName))
	sb.WriteString(" SET ")

	params := make([]odata.Param, 0, len(vals)+1)
	for i, alias := range aliases {
		db, ok := cols.Column(alias)
		if !ok {
			return nil, gateway.BadRequest("Unknown column '%s'", alias)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(db))
		sb.WriteString(" = ")
		sb.WriteString(d.Placeholder(i))
		params = append(params, odata.Param{Name: fmt.Sprintf("p%d", i), Value: bindable(vals[i])})
	}

	sb.WriteString(" WHERE ")
	sb.WriteString(d.QuoteIdent(pkColumn))
	sb.WriteString(" = ")
	sb.WriteString(d.Placeholder(len(params)))
	params = append(params, odata.Param{Name: fmt.Sprintf("p%d", len(params)), Value: bindable(id)})

	return &odata.Statement{SQL: sb.String(), Params: params}, nil
}

// buildDelete emits DELETE … WHERE pk = @p0.
func buildDelete(d odata.Dialect, spec *endpoint.SQLSpec, id any) (*odata.Statement, error) {
	if spec.PrimaryKey == "" {
		return nil, gateway.BadRequest("Endpoint has no primary key; deletes are not supported")
	}
	pkColumn, ok := spec.Columns().Column(spec.PrimaryKey)
	if !ok {
		return nil, gateway.BadRequest("Primary key '%s' is not an allowed column", spec.PrimaryKey)
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		qualified(d, spec.Schema, spec.ObjectName),
		d.QuoteIdent(pkColumn),
		d.Placeholder(0),
	)
	return &odata.Statement{
		SQL:    sql,
		Params: []odata.Param{{Name: "p0", Value: bindable(id)}},
	}, nil
}

// buildSelectByKey emits the re-read of a freshly inserted record.
func buildSelectByKey(d odata.Dialect, spec *endpoint.SQLSpec, id any) (*odata.Statement, error) {
	cols := spec.Columns()
	pkColumn, ok := cols.Column(spec.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("primary key %q not in allowed columns", spec.PrimaryKey)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		projection(d, cols),
		qualified(d, spec.Schema, spec.ObjectName),
		d.QuoteIdent(pkColumn),
		d.Placeholder(0),
	)
	return &odata.Statement{
		SQL:    sql,
		Params: []odata.Param{{Name: "p0", Value: bindable(id)}},
	}, nil
}

// buildProcedureExec emits the procedure call used for mutations: the
// parameter names are final (database column names, or "id" for deletes).
func buildProcedureExec(d odata.Dialect, schema, proc string, names []string, vals []any) (*odata.Statement, error) {
	params := make([]namedParam, len(names))
	for i := range names {
		params[i] = namedParam{name: names[i], value: vals[i]}
	}
	return buildProcedureCall(d, schema, proc, params)
}

// buildProcedureCall renders a rowset-producing procedure invocation.
func buildProcedureCall(d odata.Dialect, schema, proc string, params []namedParam) (*odata.Statement, error) {
	var sb strings.Builder
	bound := make([]odata.Param, 0, len(params))

	switch d.Name() {
	case "sqlserver":
		sb.WriteString("EXEC ")
		sb.WriteString(qualified(d, schema, proc))
		for i, p := range params {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" @")
			sb.WriteString(p.name)
			sb.WriteString(" = ")
			sb.WriteString(d.Placeholder(i))
			bound = append(bound, odata.Param{Name: fmt.Sprintf("p%d", i), Value: bindable(p.value)})
		}

	case "postgres":
		sb.WriteString("SELECT * FROM ")
		sb.WriteString(qualified(d, schema, proc))
		sb.WriteString("(")
		for i, p := range params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(i))
			bound = append(bound, odata.Param{Name: fmt.Sprintf("p%d", i), Value: bindable(p.value)})
		}
		sb.WriteString(")")

	default:
		return nil, gateway.BadRequest("Stored procedures are not supported for this environment")
	}

	return &odata.Statement{SQL: sb.String(), Params: bound}, nil
}

// functionArgs resolves TVF parameters in descriptor order. Path positions
// are 1-based into the rest segments; omitted parameters fall back to their
// default, with the literal DEFAULT passed through to the function.
func functionArgs(spec *endpoint.SQLSpec, rc *gateway.RequestContext, r *http.Request) ([]odata.FunctionArg, error) {
	args := make([]odata.FunctionArg, 0, len(spec.Parameters))
	for i := range spec.Parameters {
		p := &spec.Parameters[i]

		raw := lookupParam(p, rc, r)
		if raw == "" {
			switch {
			case p.Default == "DEFAULT":
				args = append(args, odata.FunctionArg{Default: true})
				continue
			case p.Default != "":
				raw = p.Default
			case p.Required:
				return nil, gateway.BadRequest("Missing required parameter '%s'", p.Name)
			default:
				args = append(args, odata.FunctionArg{Default: true})
				continue
			}
		}

		if !p.Matches(raw) {
			return nil, gateway.BadRequest("Parameter '%s' has an invalid value", p.Name)
		}
		v, err := convertValue(p.SQLType, raw)
		if err != nil {
			return nil, gateway.BadRequest("Parameter '%s' must be of type %s", p.Name, p.SQLType)
		}
		args = append(args, odata.FunctionArg{Value: v})
	}
	return args, nil
}

// procedureArgs resolves procedure parameters like functionArgs, but named;
// omitted optional parameters are left out so the procedure's own defaults
// apply.
func procedureArgs(spec *endpoint.SQLSpec, rc *gateway.RequestContext, r *http.Request) ([]namedParam, error) {
	params := make([]namedParam, 0, len(spec.Parameters))
	for i := range spec.Parameters {
		p := &spec.Parameters[i]

		raw := lookupParam(p, rc, r)
		if raw == "" {
			switch {
			case p.Default != "" && p.Default != "DEFAULT":
				raw = p.Default
			case p.Required:
				return nil, gateway.BadRequest("Missing required parameter '%s'", p.Name)
			default:
				continue
			}
		}

		if !p.Matches(raw) {
			return nil, gateway.BadRequest("Parameter '%s' has an invalid value", p.Name)
		}
		v, err := convertValue(p.SQLType, raw)
		if err != nil {
			return nil, gateway.BadRequest("Parameter '%s' must be of type %s", p.Name, p.SQLType)
		}
		params = append(params, namedParam{name: p.Name, value: v})
	}
	return params, nil
}

// lookupParam reads a parameter from its declared source.
func lookupParam(p *endpoint.Parameter, rc *gateway.RequestContext, r *http.Request) string {
	switch p.Source {
	case endpoint.SourcePath:
		idx := p.Position - 1
		if idx < 0 || idx >= len(rc.Rest) {
			return ""
		}
		return rc.Rest[idx]
	case endpoint.SourceHeader:
		return r.Header.Get(paramKey(p))
	default: // query
		return rc.Query.Get(paramKey(p))
	}
}

func paramKey(p *endpoint.Parameter) string {
	if p.Key != "" {
		return p.Key
	}
	return p.Name
}

// convertValue coerces a textual parameter onto the declared SQL type so
// the driver binds a typed value instead of a string.
func convertValue(sqlType, raw string) (any, error) {
	base := strings.ToLower(sqlType)
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}

	switch strings.TrimSpace(base) {
	case "int", "bigint", "smallint", "tinyint", "integer":
		return strconv.ParseInt(raw, 10, 64)
	case "bit", "bool", "boolean":
		return strconv.ParseBool(raw)
	case "float", "real", "decimal", "numeric", "money", "double":
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

// literalValue types a query-string literal: integers bind as integers so
// numeric key columns compare correctly, anything else stays text. A
// leading zero means the value is an opaque code, not a number.
func literalValue(raw string) any {
	if raw == "" || (len(raw) > 1 && raw[0] == '0') {
		return raw
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// bindable converts decoded JSON values into something drivers accept.
// Structured values are re-encoded as JSON text.
func bindable(v any) any {
	switch t := v.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	default:
		return v
	}
}

// normalizeJSONValue rebinds json.Number onto int64 or float64.
func normalizeJSONValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalizeJSONValue(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeJSONValue(t[k])
		}
		return t
	default:
		return v
	}
}

// normalizeRow makes scanned rows JSON-friendly: drivers hand back []byte
// for textual and decimal columns.
func normalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// valueText renders a body value for pattern validation.
func valueText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
