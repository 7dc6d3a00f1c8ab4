package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
)

// Composite step states. A step leaves Pending only when every dependency
// reached Success; Failed resolves to Aborted or Continued depending on the
// step's ContinueOnError.
const (
	stepPending   = "Pending"
	stepReady     = "Ready"
	stepRunning   = "Running"
	stepSuccess   = "Success"
	stepFailed    = "Failed"
	stepAborted   = "Aborted"
	stepContinued = "Continued"
)

// Composite executes multi-step plans: steps run in dependency order, each
// one an internal proxy invocation, with results flowing into later step
// templates.
type Composite struct {
	proxy *Proxy
}

// NewComposite creates the composite handler on top of the proxy handler,
// which performs the per-step upstream calls.
func NewComposite(proxy *Proxy) *Composite {
	return &Composite{proxy: proxy}
}

// compositeResult is the response envelope. StepStates and Error only appear
// on failures; a successful run reports just the results.
type compositeResult struct {
	Success     bool              `json:"success"`
	StepResults map[string]any    `json:"stepResults"`
	StepStates  map[string]string `json:"stepStates,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func (h *Composite) Handle(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	spec := rc.Endpoint.Composite
	if spec == nil {
		return gateway.Internal(fmt.Errorf("endpoint %s has no composite spec", rc.Endpoint.FullPath))
	}

	request, err := decodeCompositeBody(r)
	if err != nil {
		return err
	}

	bindings := map[string]any{"request": request}
	results := make(map[string]any, len(spec.Steps))
	states := make(map[string]string, len(spec.Steps))
	for i := range spec.Steps {
		states[spec.Steps[i].Name] = stepPending
	}

	logger.DebugCtx(r.Context(), "composite run starting", logger.Steps(len(spec.Steps)))

	for _, name := range spec.TopoOrder {
		step, ok := spec.Step(name)
		if !ok {
			return gateway.Internal(fmt.Errorf("step %q missing from plan", name))
		}

		// A dependency that did not succeed leaves this step Pending.
		if !depsSucceeded(step, states) {
			continue
		}
		states[name] = stepReady

		// Cancellation between steps: a fired deadline surfaces as an
		// error envelope, a vanished client as silence.
		if err := r.Context().Err(); err != nil {
			return execError(r.Context(), err)
		}

		states[name] = stepRunning
		logger.DebugCtx(r.Context(), "composite step dispatched",
			logger.Step(name),
			logger.State(stepRunning),
		)

		value, stepErr := h.runStep(r, rc, step, bindings)
		if stepErr != nil {
			// Template resolution problems are caller errors and fail
			// the whole request fast.
			var gwErr *gateway.Error
			if errors.As(stepErr, &gwErr) && gwErr.Kind() == gateway.KindBadRequest {
				return stepErr
			}
			if r.Context().Err() != nil {
				return execError(r.Context(), stepErr)
			}

			states[name] = stepFailed
			results[name] = map[string]any{"error": failureValue(stepErr)}

			if step.ContinueOnError {
				states[name] = stepContinued
				logger.WarnCtx(r.Context(), "composite step failed, continuing",
					logger.Step(name),
					logger.Err(stepErr),
				)
				continue
			}

			states[name] = stepAborted
			logger.WarnCtx(r.Context(), "composite step failed, aborting",
				logger.Step(name),
				logger.Err(stepErr),
			)
			gateway.WriteJSON(w, http.StatusBadGateway, compositeResult{
				Success:     false,
				StepResults: results,
				StepStates:  states,
				Error:       fmt.Sprintf("Step '%s' failed", name),
			})
			return nil
		}

		states[name] = stepSuccess
		results[name] = value
		bindings[name] = value
	}

	logger.InfoCtx(r.Context(), "composite run finished", logger.Steps(len(spec.Steps)))
	gateway.WriteJSON(w, http.StatusOK, compositeResult{
		Success:     true,
		StepResults: results,
	})
	return nil
}

// runStep executes one step: render the body, call the step endpoint, and
// return the parsed response. Array steps fan out per element and collect an
// ordered result array.
func (h *Composite) runStep(r *http.Request, rc *gateway.RequestContext, step *endpoint.Step, bindings map[string]any) (any, error) {
	def, ok := rc.Snapshot.Find(step.Endpoint)
	if !ok {
		return nil, fmt.Errorf("step endpoint %q not found", step.Endpoint)
	}

	if !step.IsArray {
		body, err := stepBody(step, bindings)
		if err != nil {
			return nil, err
		}
		return h.invoke(r, rc, step, def, body)
	}

	items, err := resolveExpr(bindings, "$request."+step.ArrayProperty)
	if err != nil {
		return nil, gateway.BadRequest("Request property '%s' is missing", step.ArrayProperty)
	}
	arr, ok := items.([]any)
	if !ok {
		return nil, gateway.BadRequest("Request property '%s' is not an array", step.ArrayProperty)
	}

	out := make([]any, len(arr))
	for i, item := range arr {
		elemBindings := make(map[string]any, len(bindings)+1)
		for k, v := range bindings {
			elemBindings[k] = v
		}
		elemBindings["item"] = item

		body, err := stepBody(step, elemBindings)
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = item
		}

		value, err := h.invoke(r, rc, step, def, body)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = value
	}
	return out, nil
}

// invoke performs one internal proxy call. A non-2xx upstream answer is a
// step failure carrying the parsed response.
func (h *Composite) invoke(r *http.Request, rc *gateway.RequestContext, step *endpoint.Step, def *endpoint.Definition, body any) (any, error) {
	value, status, err := h.proxy.Forward(r.Context(), rc, def, step.Method, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &stepStatusError{status: status, body: value}
	}
	return value, nil
}

// stepBody renders the step's outgoing body: the template when one is
// declared, the narrowed source property otherwise, the whole request as
// the fallback.
func stepBody(step *endpoint.Step, bindings map[string]any) (any, error) {
	if tpl := step.Template(); tpl != nil {
		return renderTemplate(tpl, bindings)
	}
	if step.SourceProperty != "" {
		v, err := resolveExpr(bindings, "$request."+step.SourceProperty)
		if err != nil {
			return nil, gateway.BadRequest("Request property '%s' is missing", step.SourceProperty)
		}
		return v, nil
	}
	if step.IsArray {
		// Array steps without a template forward the element itself.
		return nil, nil
	}
	return bindings["request"], nil
}

// stepStatusError is a step failure caused by an upstream non-2xx answer.
type stepStatusError struct {
	status int
	body   any
}

func (e *stepStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// failureValue shapes a step error for the stepResults entry.
func failureValue(err error) any {
	var statusErr *stepStatusError
	if errors.As(err, &statusErr) {
		return map[string]any{"status": statusErr.status, "body": statusErr.body}
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gwErr.Message()
	}
	return err.Error()
}

func depsSucceeded(step *endpoint.Step, states map[string]string) bool {
	for _, dep := range step.DependsOn {
		if states[dep] != stepSuccess {
			return false
		}
	}
	return true
}

// decodeCompositeBody parses the request into a plain JSON tree. Numbers
// decode as float64 so template paths evaluate uniformly.
func decodeCompositeBody(r *http.Request) (any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, gateway.BadRequest("Failed to read request body").WithCause(err)
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, gateway.BadRequest("Request body must be valid JSON").WithCause(err)
	}
	return tree, nil
}

// placeholderRe matches {{expr}} and the optional form {{?expr}}.
var placeholderRe = regexp.MustCompile(`\{\{(\??)\s*([^{}]+?)\s*\}\}`)

// renderTemplate walks a parsed JSON tree and substitutes placeholders.
// A string that is exactly one placeholder takes the referenced JSON value,
// type and all; placeholders embedded in longer strings insert as text.
func renderTemplate(node any, bindings map[string]any) (any, error) {
	switch t := node.(type) {
	case string:
		return renderString(t, bindings)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			rendered, err := renderTemplate(v, bindings)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rendered, err := renderTemplate(v, bindings)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return node, nil
	}
}

func renderString(s string, bindings map[string]any) (any, error) {
	matches := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		optional := s[matches[0][2]:matches[0][3]] == "?"
		expr := s[matches[0][4]:matches[0][5]]
		v, err := resolveExpr(bindings, expr)
		if err != nil {
			if optional {
				return nil, nil
			}
			return nil, gateway.BadRequest("Unresolved template reference '%s'", expr)
		}
		return v, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		optional := s[m[2]:m[3]] == "?"
		expr := s[m[4]:m[5]]
		v, err := resolveExpr(bindings, expr)
		if err != nil {
			if !optional {
				return nil, gateway.BadRequest("Unresolved template reference '%s'", expr)
			}
		} else {
			sb.WriteString(templateText(v))
		}
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

// templateText renders a resolved value for insertion inside a string.
func templateText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	}
}

// errUnresolved reports a reference that did not resolve to a value.
var errUnresolved = fmt.Errorf("unresolved reference")

// resolveExpr evaluates a template reference: the root names a binding
// ($request, $item, or a completed step, with or without the $), the rest is
// a dot-path into its JSON tree.
func resolveExpr(bindings map[string]any, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	root, rest, _ := strings.Cut(expr, ".")
	root = strings.TrimPrefix(root, "$")

	base, ok := bindings[root]
	if !ok {
		return nil, errUnresolved
	}
	if rest == "" {
		return base, nil
	}
	return lookupPath(base, rest)
}

// lookupPath resolves a dot-path against a JSON tree through a compiled jq
// query; numeric segments index arrays. A null result counts as missing,
// jq cannot tell an absent key from an explicit null.
func lookupPath(root any, path string) (any, error) {
	query, err := pathQuery(path)
	if err != nil {
		return nil, errUnresolved
	}

	iter := query.Run(root)
	v, ok := iter.Next()
	if !ok {
		return nil, errUnresolved
	}
	if _, isErr := v.(error); isErr {
		return nil, errUnresolved
	}
	if v == nil {
		return nil, errUnresolved
	}
	return v, nil
}

// pathQuery compiles "a.b.0.c" into the jq query .["a"]["b"][0]["c"].
func pathQuery(path string) (*gojq.Query, error) {
	var sb strings.Builder
	sb.WriteString(".")
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, fmt.Errorf("empty path segment in %q", path)
		}
		if isAllDigits(seg) {
			sb.WriteString("[" + seg + "]")
		} else {
			sb.WriteString("[" + strconv.Quote(seg) + "]")
		}
	}
	return gojq.Parse(sb.String())
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
