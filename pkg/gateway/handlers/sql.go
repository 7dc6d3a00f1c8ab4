// Package handlers implements one gateway handler per endpoint kind.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
	"github.com/portway-io/portway/pkg/odata"
)

// maxBodyBytes caps JSON request bodies for SQL endpoints.
const maxBodyBytes = 1 << 20

// SQL executes descriptor-driven statements against the environment's pool.
// Reads compile through the OData pipeline; mutations build parameterised
// statements from the body and always run inside a transaction.
type SQL struct{}

// NewSQL creates the SQL handler.
func NewSQL() *SQL { return &SQL{} }

func (h *SQL) Handle(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	spec := rc.Endpoint.SQL
	if spec == nil {
		return gateway.Internal(fmt.Errorf("endpoint %s has no sql spec", rc.Endpoint.FullPath))
	}

	switch rc.Method {
	case http.MethodGet:
		return h.list(w, r, rc, spec)
	case http.MethodPost:
		return h.insert(w, r, rc, spec)
	case http.MethodPut:
		return h.update(w, r, rc, spec, true)
	case http.MethodPatch:
		return h.update(w, r, rc, spec, false)
	case http.MethodDelete:
		return h.delete(w, r, rc, spec)
	default:
		return gateway.MethodNotAllowed("Method %s not supported for SQL endpoints", rc.Method)
	}
}

// list handles GET: OData query → compiled SELECT → {count,value,nextLink}.
func (h *SQL) list(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, spec *endpoint.SQLSpec) error {
	q, err := odata.ParseQuery(rc.Query)
	if err != nil {
		return err
	}

	if spec.ObjectType == endpoint.ObjectStoredProcedure {
		return h.listProcedure(w, r, rc, spec)
	}

	// An absent $top still pages at the cap, so one request can never
	// drag an unbounded table through the gateway.
	if q.Top < 0 {
		q.Top = odata.MaxTop
	}

	src := odata.SelectSource{
		Schema:     spec.Schema,
		Object:     spec.ObjectName,
		Columns:    spec.Columns(),
		PrimaryKey: spec.PrimaryKey,
	}
	if spec.ObjectType == endpoint.ObjectTableValuedFunction {
		args, err := functionArgs(spec, rc, r)
		if err != nil {
			return err
		}
		src.Function = true
		src.Args = args
	}

	dialect := rc.Environment.Dialect()
	stmt, err := odata.CompileSelect(dialect, src, q)
	if err != nil {
		return err
	}

	logger.DebugCtx(r.Context(), "compiled select",
		logger.Object(spec.ObjectName),
		logger.Params(len(stmt.Params)),
		logger.Top(q.Top),
		logger.Skip(q.Skip),
	)

	conn, err := rc.Environment.Acquire(r.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	rows, err := conn.QueryxContext(r.Context(), stmt.SQL, bindArgs(dialect, stmt.Params)...)
	if err != nil {
		return execError(r.Context(), err)
	}
	defer rows.Close()

	value, err := scanRows(rows)
	if err != nil {
		return execError(r.Context(), err)
	}

	logger.DebugCtx(r.Context(), "select executed", logger.Rows(int64(len(value))))

	gateway.WriteJSON(w, http.StatusOK, gateway.NewListResult(value, q.Top, q.Skip, r.URL))
	return nil
}

// listProcedure handles GET against a stored procedure: parameters resolve
// like TVF parameters, rows come back as the procedure returns them. OData
// options do not apply; procedures own their result shape.
func (h *SQL) listProcedure(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, spec *endpoint.SQLSpec) error {
	params, err := procedureArgs(spec, rc, r)
	if err != nil {
		return err
	}

	dialect := rc.Environment.Dialect()
	stmt, err := buildProcedureCall(dialect, spec.Schema, spec.ObjectName, params)
	if err != nil {
		return err
	}

	conn, err := rc.Environment.Acquire(r.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	rows, err := conn.QueryxContext(r.Context(), stmt.SQL, bindArgs(dialect, stmt.Params)...)
	if err != nil {
		return execError(r.Context(), err)
	}
	defer rows.Close()

	value, err := scanRows(rows)
	if err != nil {
		return execError(r.Context(), err)
	}

	gateway.WriteJSON(w, http.StatusOK, gateway.ListResult{Count: len(value), Value: value})
	return nil
}

// insert handles POST: validate the body, INSERT (or EXEC the configured
// procedure), and return the created record when it can be re-read.
func (h *SQL) insert(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, spec *endpoint.SQLSpec) error {
	body, err := decodeBody(r)
	if err != nil {
		return err
	}

	if details := validateBody(spec, body, true); len(details) > 0 {
		return gateway.Unprocessable("Validation failed").WithDetails(details)
	}

	dialect := rc.Environment.Dialect()
	cols, vals := boundColumns(spec, body, "")

	conn, err := rc.Environment.Acquire(r.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(r.Context(), nil)
	if err != nil {
		return execError(r.Context(), err)
	}
	defer tx.Rollback()

	if spec.Procedure != "" {
		stmt, err := buildProcedureExec(dialect, spec.Schema, spec.Procedure, dbNames(spec, cols), vals)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(r.Context(), stmt.SQL, bindArgs(dialect, stmt.Params)...); err != nil {
			return execError(r.Context(), err)
		}
		if err := tx.Commit(); err != nil {
			return execError(r.Context(), err)
		}
		gateway.WriteJSON(w, http.StatusCreated, gateway.MutationResult{
			Success: true,
			Message: "Record created",
		})
		return nil
	}

	id, err := execInsert(r.Context(), tx, dialect, spec, cols, vals)
	if err != nil {
		return execError(r.Context(), err)
	}

	// A non-identity key comes from the body rather than the database.
	if id == nil && spec.PrimaryKey != "" {
		if v, ok := body[spec.PrimaryKey]; ok {
			id = v
		}
	}

	if id != nil && spec.PrimaryKey != "" {
		record, err := fetchByKey(r.Context(), tx, dialect, spec, id)
		if err != nil {
			return execError(r.Context(), err)
		}
		if record != nil {
			if err := tx.Commit(); err != nil {
				return execError(r.Context(), err)
			}
			logger.InfoCtx(r.Context(), "record created", logger.Object(spec.ObjectName))
			gateway.WriteJSON(w, http.StatusCreated, record)
			return nil
		}
	}

	if err := tx.Commit(); err != nil {
		return execError(r.Context(), err)
	}
	logger.InfoCtx(r.Context(), "record created", logger.Object(spec.ObjectName))
	gateway.WriteJSON(w, http.StatusCreated, gateway.MutationResult{
		Success: true,
		ID:      id,
		Message: "Record created",
	})
	return nil
}

// update handles PUT and PATCH. PUT validates the body like an insert;
// PATCH validates only the keys it carries.
func (h *SQL) update(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, spec *endpoint.SQLSpec, full bool) error {
	if spec.PrimaryKey == "" {
		return gateway.BadRequest("Endpoint '%s' has no primary key; updates are not supported", rc.Endpoint.FullPath)
	}

	body, err := decodeBody(r)
	if err != nil {
		return err
	}

	id, err := keyValue(rc, spec, body)
	if err != nil {
		return err
	}

	if details := validateBody(spec, body, full); len(details) > 0 {
		return gateway.Unprocessable("Validation failed").WithDetails(details)
	}

	dialect := rc.Environment.Dialect()
	cols, vals := boundColumns(spec, body, spec.PrimaryKey)
	if len(cols) == 0 {
		return gateway.BadRequest("No columns to update")
	}

	stmt, err := buildUpdate(dialect, spec, cols, vals, id)
	if err != nil {
		return err
	}

	affected, err := h.execMutation(r.Context(), rc, dialect, stmt)
	if err != nil {
		return err
	}
	if affected == 0 {
		return gateway.NotFound("Record not found")
	}

	logger.InfoCtx(r.Context(), "record updated",
		logger.Object(spec.ObjectName),
		logger.Rows(affected),
	)
	gateway.WriteJSON(w, http.StatusOK, gateway.MutationResult{
		Success:      true,
		RowsAffected: gateway.Rows(affected),
		Message:      "Record updated",
	})
	return nil
}

// delete handles DELETE ?id=…, through the configured procedure when set.
func (h *SQL) delete(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, spec *endpoint.SQLSpec) error {
	raw := rc.Query.Get("id")
	if raw == "" {
		return gateway.BadRequest("Query parameter 'id' is required")
	}
	id := literalValue(raw)

	dialect := rc.Environment.Dialect()

	var (
		stmt *odata.Statement
		err  error
	)
	if spec.Procedure != "" {
		stmt, err = buildProcedureExec(dialect, spec.Schema, spec.Procedure, []string{"id"}, []any{id})
	} else {
		stmt, err = buildDelete(dialect, spec, id)
	}
	if err != nil {
		return err
	}

	affected, err := h.execMutation(r.Context(), rc, dialect, stmt)
	if err != nil {
		return err
	}
	if affected == 0 && spec.Procedure == "" {
		return gateway.NotFound("Record not found")
	}

	logger.InfoCtx(r.Context(), "record deleted",
		logger.Object(spec.ObjectName),
		logger.Rows(affected),
	)
	gateway.WriteJSON(w, http.StatusOK, gateway.MutationResult{
		Success:      true,
		RowsAffected: gateway.Rows(affected),
		Message:      "Record deleted",
	})
	return nil
}

// execMutation runs one mutating statement inside a transaction and returns
// the affected row count.
func (h *SQL) execMutation(ctx context.Context, rc *gateway.RequestContext, dialect odata.Dialect, stmt *odata.Statement) (int64, error) {
	conn, err := rc.Environment.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, execError(ctx, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, stmt.SQL, bindArgs(dialect, stmt.Params)...)
	if err != nil {
		return 0, execError(ctx, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	if err := tx.Commit(); err != nil {
		return 0, execError(ctx, err)
	}
	return affected, nil
}

// execInsert runs the INSERT and returns the database-generated key, or nil
// when the dialect or the object does not yield one.
func execInsert(ctx context.Context, tx *sqlx.Tx, dialect odata.Dialect, spec *endpoint.SQLSpec, cols []string, vals []any) (any, error) {
	stmt, err := buildInsert(dialect, spec, cols, vals)
	if err != nil {
		return nil, err
	}
	args := bindArgs(dialect, stmt.Params)

	switch dialect.Name() {
	case "sqlserver":
		// The batch ends in SELECT SCOPE_IDENTITY(); the insert itself
		// produces no rowset, so the first rowset is the key.
		row := tx.QueryRowxContext(ctx, stmt.SQL, args...)
		var id any
		if err := row.Scan(&id); err != nil {
			return nil, err
		}
		return normalizeValue(id), nil

	case "postgres":
		if spec.PrimaryKey != "" {
			row := tx.QueryRowxContext(ctx, stmt.SQL, args...)
			var id any
			if err := row.Scan(&id); err != nil {
				return nil, err
			}
			return normalizeValue(id), nil
		}
		_, err := tx.ExecContext(ctx, stmt.SQL, args...)
		return nil, err

	default: // sqlite
		if _, err := tx.ExecContext(ctx, stmt.SQL, args...); err != nil {
			return nil, err
		}
		var id int64
		if err := tx.QueryRowxContext(ctx, "SELECT last_insert_rowid()").Scan(&id); err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, nil
		}
		return id, nil
	}
}

// fetchByKey re-reads the created record inside the same transaction.
// Returns nil without error when the row is not visible.
func fetchByKey(ctx context.Context, tx *sqlx.Tx, dialect odata.Dialect, spec *endpoint.SQLSpec, id any) (map[string]any, error) {
	stmt, err := buildSelectByKey(dialect, spec, id)
	if err != nil {
		// No resolvable key column; fall back to the mutation envelope.
		return nil, nil
	}

	rows, err := tx.QueryxContext(ctx, stmt.SQL, bindArgs(dialect, stmt.Params)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	record := map[string]any{}
	if err := rows.MapScan(record); err != nil {
		return nil, err
	}
	return normalizeRow(record), rows.Err()
}

// keyValue extracts the primary key for an update: ?id= wins, then the
// body's primary key alias.
func keyValue(rc *gateway.RequestContext, spec *endpoint.SQLSpec, body map[string]any) (any, error) {
	if raw := rc.Query.Get("id"); raw != "" {
		return literalValue(raw), nil
	}
	if v, ok := body[spec.PrimaryKey]; ok && v != nil {
		return v, nil
	}
	return nil, gateway.BadRequest("Primary key '%s' is required", spec.PrimaryKey)
}

// decodeBody parses the JSON request body into a single object. Numbers
// keep their textual form so integer keys survive the round trip.
func decodeBody(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, gateway.BadRequest("Request body must be a JSON object").WithCause(err)
	}

	for k, v := range body {
		body[k] = normalizeJSONValue(v)
	}
	return body, nil
}

// validateBody checks the body against the descriptor: unknown keys are
// rejected, required columns must be present (full validation only), and
// declared patterns must match.
func validateBody(spec *endpoint.SQLSpec, body map[string]any, full bool) []gateway.FieldError {
	var details []gateway.FieldError
	cols := spec.Columns()

	if full {
		for _, required := range spec.RequiredColumns {
			if v, ok := body[required]; !ok || v == nil {
				details = append(details, gateway.FieldError{Field: required, Message: "required"})
			}
		}
	}

	for _, alias := range cols.Aliases() {
		v, ok := body[alias]
		if !ok || v == nil {
			continue
		}
		re, message, ok := spec.Rule(alias)
		if !ok {
			continue
		}
		if !re.MatchString(valueText(v)) {
			if message == "" {
				message = "invalid format"
			}
			details = append(details, gateway.FieldError{Field: alias, Message: message})
		}
	}

	for key := range body {
		if !cols.HasAlias(key) {
			details = append(details, gateway.FieldError{Field: key, Message: "unknown column"})
		}
	}

	return details
}

// boundColumns walks the allow-list in descriptor order and picks the body
// values to bind, skipping the excluded alias (the primary key on updates).
func boundColumns(spec *endpoint.SQLSpec, body map[string]any, exclude string) ([]string, []any) {
	cols := spec.Columns()
	aliases := cols.Aliases()

	names := make([]string, 0, len(aliases))
	vals := make([]any, 0, len(aliases))
	for _, alias := range aliases {
		if alias == exclude {
			continue
		}
		v, ok := body[alias]
		if !ok {
			continue
		}
		names = append(names, alias)
		vals = append(vals, v)
	}
	return names, vals
}

// scanRows maps every row to a JSON-ready object keyed by column alias.
func scanRows(rows *sqlx.Rows) ([]map[string]any, error) {
	out := []map[string]any{}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, normalizeRow(row))
	}
	return out, rows.Err()
}

// execError maps execution failures onto their kinds: an expired request
// deadline is a gateway timeout, a driver-side timeout means the backend is
// unavailable, a constraint violation is a conflict.
func execError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return gateway.GatewayTimeout("Request deadline exceeded").WithCause(err)
		}
		return err
	}
	if isConstraintViolation(err) {
		return gateway.Conflict("Constraint violation").WithCause(err)
	}
	if isDriverTimeout(err) {
		return gateway.Unavailable("Database did not respond in time").WithCause(err)
	}
	return err
}

func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint") ||
		strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "foreign key")
}

func isDriverTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
