package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
	"github.com/portway-io/portway/pkg/odata"
)

// DefaultProxyBufferBytes caps buffering of bodies with unknown length.
const DefaultProxyBufferBytes = 4 << 20

// hopByHop headers are connection-scoped and never cross the proxy.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Proxy forwards requests to the endpoint's upstream. The client is shared
// across requests so connections are reused per host; deadlines come from
// the request context, not a client timeout.
type Proxy struct {
	client    *http.Client
	bufferCap int64
}

// NewProxy creates the proxy handler. A nil client gets a shared default;
// bufferCap <= 0 falls back to DefaultProxyBufferBytes.
func NewProxy(client *http.Client, bufferCap int64) *Proxy {
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = 32
		client = &http.Client{Transport: transport}
	}
	if bufferCap <= 0 {
		bufferCap = DefaultProxyBufferBytes
	}
	return &Proxy{client: client, bufferCap: bufferCap}
}

func (h *Proxy) Handle(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	spec := rc.Endpoint.Proxy
	if spec == nil {
		return gateway.Internal(fmt.Errorf("endpoint %s has no proxy spec", rc.Endpoint.FullPath))
	}

	target, err := upstreamURL(spec, rc)
	if err != nil {
		return err
	}
	translated := spec.TranslateMethod(rc.Method)

	body, length, err := outboundBody(r, h.bufferCap)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(r.Context(), translated, target, body)
	if err != nil {
		return gateway.Internal(err)
	}
	req.ContentLength = length

	copyInbound(req.Header, r.Header)
	applyHeaderAppend(r.Context(), req.Header, spec, rc.Method, translated)

	logger.DebugCtx(r.Context(), "forwarding upstream",
		logger.Upstream(target),
		logger.TranslatedMethod(translated),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return upstreamError(r.Context(), err)
	}
	defer resp.Body.Close()

	// Upstream 4xx/5xx pass through verbatim, body and all.
	copyOutbound(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.WarnCtx(r.Context(), "upstream stream interrupted", logger.Err(err))
	}
	return nil
}

// Forward invokes a proxy endpoint on behalf of a composite step: the body
// is a rendered JSON tree, the return value the parsed upstream response.
func (h *Proxy) Forward(ctx context.Context, rc *gateway.RequestContext, def *endpoint.Definition, method string, body any) (any, int, error) {
	spec := def.Proxy
	if spec == nil {
		return nil, 0, gateway.BadRequest("Step endpoint '%s' is not a proxy endpoint", def.FullPath)
	}

	u, err := templateURL(spec, rc.Environment.Name())
	if err != nil {
		return nil, 0, gateway.Internal(fmt.Errorf("endpoint %s: %w", def.FullPath, err))
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, gateway.Internal(err)
		}
		reader = bytes.NewReader(data)
	}

	translated := spec.TranslateMethod(method)
	req, err := http.NewRequestWithContext(ctx, translated, u.String(), reader)
	if err != nil {
		return nil, 0, gateway.Internal(err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	applyHeaderAppend(ctx, req.Header, spec, method, translated)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, upstreamError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.bufferCap))
	if err != nil {
		return nil, resp.StatusCode, gateway.BadGateway("Failed to read upstream response").WithCause(err)
	}

	var parsed any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			parsed = string(data)
		}
	}
	return parsed, resp.StatusCode, nil
}

// outboundBody prepares a forwarded body. Known lengths stream through;
// unknown lengths are buffered up to limit so the upstream sees a
// Content-Length.
func outboundBody(r *http.Request, limit int64) (io.Reader, int64, error) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil, 0, nil
	}
	if r.ContentLength > 0 {
		return r.Body, r.ContentLength, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, 0, gateway.BadRequest("Failed to read request body").WithCause(err)
	}
	if int64(len(data)) > limit {
		return nil, 0, gateway.PayloadTooLarge("Request body exceeds the proxy buffer limit")
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// templateURL renders the target template for an environment.
func templateURL(spec *endpoint.ProxySpec, env string) (*url.URL, error) {
	base := strings.ReplaceAll(spec.TargetURLTemplate, "{env}", url.PathEscape(env))
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream template %q: %w", spec.TargetURLTemplate, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("upstream template %q is not absolute", spec.TargetURLTemplate)
	}
	return u, nil
}

// upstreamURL builds the full forwarding target: template plus trailing
// path segments plus the rewritten query string.
func upstreamURL(spec *endpoint.ProxySpec, rc *gateway.RequestContext) (string, error) {
	u, err := templateURL(spec, rc.Environment.Name())
	if err != nil {
		return "", gateway.Internal(fmt.Errorf("endpoint %s: %w", rc.Endpoint.FullPath, err))
	}
	if len(rc.Rest) > 0 {
		u = u.JoinPath(rc.Rest...)
	}
	u.RawQuery = upstreamQuery(spec, rc).Encode()
	return u.String(), nil
}

// upstreamQuery rewrites the forwarded query string: GET gets a $top
// default, and OData field names translate through the endpoint's alias
// map when one is declared. Options the parser cannot read pass through
// untouched; the upstream owns their rejection.
func upstreamQuery(spec *endpoint.ProxySpec, rc *gateway.RequestContext) url.Values {
	q := url.Values{}
	for k, vs := range rc.Query {
		q[k] = append([]string(nil), vs...)
	}

	if rc.Method == http.MethodGet && q.Get("$top") == "" {
		q.Set("$top", "10")
	}

	cols := spec.Columns()
	if cols == nil {
		return q
	}
	rename := func(alias string) string {
		if db, ok := cols.Column(alias); ok {
			return db
		}
		return alias
	}

	if v := q.Get("$select"); v != "" {
		if fields, err := odata.ParseSelect(v); err == nil {
			out := make([]string, len(fields))
			for i, f := range fields {
				out[i] = rename(f)
			}
			q.Set("$select", strings.Join(out, ","))
		}
	}
	if v := q.Get("$orderby"); v != "" {
		if items, err := odata.ParseOrderBy(v); err == nil {
			q.Set("$orderby", odata.FormatOrderBy(items, rename))
		}
	}
	if v := q.Get("$filter"); v != "" {
		if expr, err := odata.ParseFilter(v); err == nil {
			q.Set("$filter", odata.FormatFilter(expr, rename))
		}
	}
	return q
}

// copyInbound forwards client headers, dropping hop-by-hop headers and the
// gateway's own Authorization, which must not leak upstream.
func copyInbound(dst, src http.Header) {
	for k, vs := range src {
		canonical := http.CanonicalHeaderKey(k)
		if hopByHop[canonical] || canonical == "Authorization" {
			continue
		}
		dst[canonical] = append([]string(nil), vs...)
	}
}

// copyOutbound returns upstream headers to the client. The correlation id
// set by the middleware wins over anything the upstream sends.
func copyOutbound(dst, src http.Header) {
	for k, vs := range src {
		canonical := http.CanonicalHeaderKey(k)
		if hopByHop[canonical] || canonical == gateway.HeaderCorrelationID {
			continue
		}
		dst[canonical] = append([]string(nil), vs...)
	}
}

// applyHeaderAppend adds the descriptor's per-method headers with method
// placeholders substituted, honouring the conflict policy for headers the
// client already sent.
func applyHeaderAppend(ctx context.Context, hdr http.Header, spec *endpoint.ProxySpec, original, translated string) {
	for _, hv := range headerAppendFor(spec, original) {
		value := strings.ReplaceAll(hv.Value, "{ORIGINAL_METHOD}", original)
		value = strings.ReplaceAll(value, "{TRANSLATED_METHOD}", translated)

		if hdr.Get(hv.Key) == "" {
			hdr.Set(hv.Key, value)
			continue
		}
		switch spec.HeaderConflict {
		case endpoint.ConflictOverwrite:
			hdr.Set(hv.Key, value)
		case endpoint.ConflictLogAndAdd:
			logger.WarnCtx(ctx, "appending to header already set by client", "header", hv.Key)
			hdr.Add(hv.Key, value)
		default: // Skip
		}
	}
}

func headerAppendFor(spec *endpoint.ProxySpec, method string) []endpoint.HeaderValue {
	for key, values := range spec.HeaderAppend {
		if strings.EqualFold(key, method) {
			return values
		}
	}
	return nil
}

// upstreamError classifies transport failures: timeouts are gateway
// timeouts, a vanished client is silence, anything else is a bad gateway.
func upstreamError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gateway.GatewayTimeout("Upstream did not respond in time").WithCause(err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return gateway.GatewayTimeout("Upstream did not respond in time").WithCause(err)
	}
	return gateway.BadGateway("Upstream request failed").WithCause(err)
}
