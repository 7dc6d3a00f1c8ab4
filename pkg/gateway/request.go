package gateway

import (
	"net/http"
	"net/url"

	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/environment"
	"github.com/portway-io/portway/pkg/token"
)

// RequestContext carries everything the dispatcher resolved for one request.
// Handlers own it until the response is written. The body and headers stay on
// the *http.Request; deadlines travel on its context.
type RequestContext struct {
	// Method is the effective verb after MERGE→PATCH aliasing.
	Method string

	// Path is the raw request path, for logging and nextLink building.
	Path string

	// Rest holds the path segments after the endpoint name. File downloads
	// carry the file id here; TVF path parameters bind from here.
	Rest []string

	// Query is the parsed query string.
	Query url.Values

	// Environment is the resolved backend for {env}.
	Environment *environment.Handle

	// Token identifies the verified caller.
	Token *token.Info

	// Endpoint is the resolved definition. Nil only for webhook requests.
	Endpoint *endpoint.Definition

	// Snapshot is the registry view taken at dispatch. Composite internal
	// calls resolve step endpoints against this same view.
	Snapshot *endpoint.Snapshot

	// CorrelationID is echoed in X-Correlation-Id and every log line.
	CorrelationID string
}

// Handler executes one endpoint kind. A returned error is classified and
// written by the dispatcher; a nil return means the handler wrote the
// response itself.
type Handler interface {
	Handle(w http.ResponseWriter, r *http.Request, rc *RequestContext) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, rc *RequestContext) error

func (f HandlerFunc) Handle(w http.ResponseWriter, r *http.Request, rc *RequestContext) error {
	return f(w, r, rc)
}

// HealthRoutes serves the unauthenticated probe endpoints.
type HealthRoutes interface {
	Liveness(w http.ResponseWriter, r *http.Request)
	Readiness(w http.ResponseWriter, r *http.Request)
}

// Handlers wires one handler per endpoint kind into the dispatcher. All
// fields must be set except Webhook and Health, which may be nil when the
// deployment has no sinks or probes.
type Handlers struct {
	SQL       Handler
	Proxy     Handler
	Composite Handler
	File      Handler
	Static    Handler
	Webhook   Handler
	Health    HealthRoutes
}

// forKind returns the handler for an endpoint kind.
func (h Handlers) forKind(kind endpoint.Kind) Handler {
	switch kind {
	case endpoint.KindSQL:
		return h.SQL
	case endpoint.KindProxy:
		return h.Proxy
	case endpoint.KindComposite:
		return h.Composite
	case endpoint.KindFile:
		return h.File
	case endpoint.KindStatic:
		return h.Static
	default:
		return nil
	}
}
