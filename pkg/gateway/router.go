package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/internal/telemetry"
	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/environment"
	"github.com/portway-io/portway/pkg/metrics"
	"github.com/portway-io/portway/pkg/token"
)

var errNoHandler = errors.New("no handler wired for endpoint kind")

// Dispatcher resolves /{env}/{endpoint}[/...] requests: environment gate,
// bearer authentication, scope and environment authorisation, endpoint
// lookup, method check, then delegation to the handler for the endpoint's
// kind. All failures leave through the uniform error envelope.
type Dispatcher struct {
	cfg          Config
	registry     *endpoint.Registry
	environments *environment.Registry
	tokens       *token.Service
	handlers     Handlers
	metrics      *metrics.GatewayMetrics
}

// NewDispatcher wires the dispatcher. metrics may be nil.
func NewDispatcher(
	cfg Config,
	registry *endpoint.Registry,
	environments *environment.Registry,
	tokens *token.Service,
	handlers Handlers,
	m *metrics.GatewayMetrics,
) *Dispatcher {
	cfg.ApplyDefaults()
	return &Dispatcher{
		cfg:          cfg,
		registry:     registry,
		environments: environments,
		tokens:       tokens,
		handlers:     handlers,
		metrics:      m,
	}
}

// Routes builds the chi router: middleware stack, unauthenticated probe
// routes, and the dispatch entry under the configured prefix.
func (d *Dispatcher) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RealIP)
	r.Use(correlationID)
	r.Use(requestLogger)
	r.Use(recoverer(d.metrics))

	if d.handlers.Health != nil {
		r.Route("/health", func(r chi.Router) {
			r.Get("/", d.handlers.Health.Liveness)
			r.Get("/ready", d.handlers.Health.Readiness)
		})
	}

	r.HandleFunc(d.cfg.Prefix+"/{env}/*", d.dispatch)

	return r
}

// dispatch runs the resolution steps in order. The order is observable:
// an unknown environment answers 403 before authentication, a bad token
// answers 401 before any endpoint detail leaks.
func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	done := d.metrics.RequestStarted()
	defer done()

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	rc, req, err := d.resolve(r)
	if err != nil {
		d.writeFailure(ww, r, err, start)
		return
	}

	handler := d.handlerFor(rc)
	if handler == nil {
		d.writeFailure(ww, req, Internal(errNoHandler), start)
		return
	}

	ctx, span := telemetry.StartRequestSpan(req.Context(), rc.Environment.Name(), rc.subject(), rc.handlerKind(), rc.Method)
	defer span.End()
	span.SetAttributes(telemetry.CorrelationID(rc.CorrelationID))

	// Step 7 runs under the per-endpoint deadline.
	ctx, cancel := context.WithTimeout(ctx, d.cfg.TimeoutFor(rc.subject()))
	defer cancel()
	req = req.WithContext(ctx)

	if err := handler.Handle(ww, req, rc); err != nil {
		telemetry.RecordError(ctx, err)
		WriteError(ww, req, err, d.metrics)
	}
	span.SetAttributes(telemetry.HTTPStatus(ww.Status()))

	d.observe(rc, ww.Status(), start)
}

// resolve performs the authentication and routing steps and builds the
// request context.
func (d *Dispatcher) resolve(r *http.Request) (*RequestContext, *http.Request, error) {
	env := chi.URLParam(r, "env")
	segments := splitSegments(chi.URLParam(r, "*"))

	// Step 1: the environment must be configured.
	if !d.environments.IsAllowed(env) {
		return nil, r, Forbidden("Environment '%s' is not allowed", env)
	}

	// Step 2: authenticate the caller.
	plaintext, ok := bearerToken(r)
	if !ok {
		return nil, r, Unauthenticated("Missing bearer token")
	}
	info, err := d.tokens.Verify(r.Context(), plaintext)
	d.metrics.RecordTokenVerification(err == nil)
	if err != nil {
		return nil, r, err
	}

	if lc := logger.FromContext(r.Context()); lc != nil {
		lc.TokenName = info.Username
	}

	if len(segments) == 0 {
		return nil, r, NotFound("Not found")
	}

	snap := d.registry.Snapshot()
	route := parseRoute(snap, segments)

	subject := route.requested
	if route.def != nil {
		subject = route.def.FullPath
	}

	// Step 3: token scope must cover the endpoint. The body stays a bare
	// "Forbidden": the caller learns nothing about what exists.
	if !info.AllowsScope(subject) {
		return nil, r, Forbidden("Forbidden")
	}

	// Step 4: token must be allowed in this environment.
	if !info.AllowsEnvironment(env) {
		return nil, r, Forbidden("Forbidden")
	}

	// Step 5: the endpoint must exist, be public, and match the route
	// shape. Private endpoints stay reachable for composite steps only.
	if !route.webhook {
		if route.def == nil || route.def.IsPrivate || route.def.Kind != route.wantKind {
			return nil, r, NotFound("Endpoint '%s' not found", route.requested)
		}
	}

	// Step 6: the verb must be permitted. MERGE is an alias for PATCH.
	method := strings.ToUpper(r.Method)
	if method == "MERGE" {
		method = http.MethodPatch
	}
	if route.webhook {
		if method != http.MethodPost {
			return nil, r, MethodNotAllowed("Method %s not allowed on webhook", r.Method)
		}
	} else if !methodAllowed(route.def, method) {
		return nil, r, MethodNotAllowed("Method %s not allowed on endpoint '%s'", r.Method, route.def.FullPath)
	}

	handle, err := d.environments.Resolve(env)
	if err != nil {
		return nil, r, err
	}

	rc := &RequestContext{
		Method:        method,
		Path:          r.URL.Path,
		Rest:          route.rest,
		Query:         r.URL.Query(),
		Environment:   handle,
		Token:         info,
		Endpoint:      route.def,
		Snapshot:      snap,
		CorrelationID: r.Header.Get(HeaderCorrelationID),
	}

	if lc := logger.FromContext(r.Context()); lc != nil {
		lc.Environment = env
		lc.Endpoint = subject
		lc.Handler = route.handlerName()
		rc.CorrelationID = lc.CorrelationID
	}

	return rc, r, nil
}

// subject is the scope-checked name of the request target.
func (rc *RequestContext) subject() string {
	if rc.Endpoint != nil {
		return rc.Endpoint.FullPath
	}
	if len(rc.Rest) > 0 {
		return "webhook/" + rc.Rest[0]
	}
	return "webhook"
}

// handlerKind names the handler serving this request for logs, metrics
// and spans.
func (rc *RequestContext) handlerKind() string {
	if rc.Endpoint == nil {
		return "webhook"
	}
	return strings.ToLower(string(rc.Endpoint.Kind))
}

// handlerFor picks the handler for the resolved route.
func (d *Dispatcher) handlerFor(rc *RequestContext) Handler {
	if rc.Endpoint == nil {
		return d.handlers.Webhook
	}
	return d.handlers.forKind(rc.Endpoint.Kind)
}

// writeFailure writes an error envelope for a request that never reached a
// handler and records it.
func (d *Dispatcher) writeFailure(ww middleware.WrapResponseWriter, r *http.Request, err error, start time.Time) {
	WriteError(ww, r, err, d.metrics)
	env := chi.URLParam(r, "env")
	d.metrics.ObserveRequest(env, "unresolved", r.Method, ww.Status(), time.Since(start))
}

// observe records the completed request.
func (d *Dispatcher) observe(rc *RequestContext, status int, start time.Time) {
	kind := rc.handlerKind()
	env := ""
	if rc.Environment != nil {
		env = rc.Environment.Name()
	}
	if status == 0 {
		// Nothing written: implicit 200 or abandoned client.
		status = http.StatusOK
	}
	d.metrics.ObserveRequest(env, kind, rc.Method, status, time.Since(start))
}

// route is the parsed shape of the path after /{env}/.
type route struct {
	requested string
	def       *endpoint.Definition
	rest      []string
	wantKind  endpoint.Kind
	webhook   bool
}

func (rt route) handlerName() string {
	if rt.webhook {
		return "webhook"
	}
	if rt.def != nil {
		return strings.ToLower(string(rt.def.Kind))
	}
	return "unresolved"
}

// parseRoute matches the path grammar:
//
//	files/<endpoint>[/<rest>] | webhook/<id> | composite/<endpoint> | <endpoint>[/<rest>]
//
// Plain endpoint names may span several segments (namespaces); the longest
// name the snapshot resolves wins and the remainder becomes rest.
func parseRoute(snap *endpoint.Snapshot, segments []string) route {
	switch segments[0] {
	case "files":
		rt := route{wantKind: endpoint.KindFile}
		if len(segments) < 2 {
			rt.requested = strings.Join(segments, "/")
			return rt
		}
		rt.def, rt.requested, rt.rest = findLongest(snap, segments[1:])
		return rt

	case "webhook":
		rt := route{requested: strings.Join(segments, "/")}
		// Exactly webhook/<id>; anything longer is not a route.
		if len(segments) == 2 {
			rt.webhook = true
			rt.rest = segments[1:]
		}
		return rt

	case "composite":
		rt := route{wantKind: endpoint.KindComposite}
		if len(segments) < 2 {
			rt.requested = strings.Join(segments, "/")
			return rt
		}
		rt.def, rt.requested, rt.rest = findLongest(snap, segments[1:])
		return rt

	default:
		rt := route{}
		rt.def, rt.requested, rt.rest = findLongest(snap, segments)
		if rt.def != nil {
			rt.wantKind = rt.def.Kind
			// Plain routes never reach file or composite endpoints;
			// those have their own prefixes.
			if rt.def.Kind == endpoint.KindFile || rt.def.Kind == endpoint.KindComposite {
				rt.def = nil
				rt.wantKind = ""
			}
		}
		return rt
	}
}

// findLongest resolves the longest leading run of segments to an endpoint
// name. Returns the resolved definition (nil on miss), the requested name,
// and the unconsumed rest.
func findLongest(snap *endpoint.Snapshot, segments []string) (*endpoint.Definition, string, []string) {
	for i := len(segments); i >= 1; i-- {
		name := strings.Join(segments[:i], "/")
		if def, ok := snap.Find(name); ok {
			return def, name, segments[i:]
		}
	}
	return nil, strings.Join(segments, "/"), nil
}

// methodAllowed checks the verb against the descriptor. A descriptor that
// lists MERGE thereby permits PATCH.
func methodAllowed(def *endpoint.Definition, method string) bool {
	if def.AllowsMethod(method) {
		return true
	}
	return method == http.MethodPatch && def.AllowsMethod("MERGE")
}

// bearerToken extracts the opaque token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

// splitSegments splits the wildcard tail into decoded path segments.
func splitSegments(tail string) []string {
	parts := strings.Split(tail, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if dec, err := url.PathUnescape(p); err == nil {
			p = dec
		}
		out = append(out, p)
	}
	return out
}
