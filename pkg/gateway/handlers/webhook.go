package handlers

import (
	"io"
	"net/http"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/gateway"
)

// Webhook relays POST bodies to statically configured sinks. The route
// /{env}/webhook/{id} names the sink; the gateway adds the sink's headers
// and returns whatever the sink answers.
type Webhook struct {
	client    *http.Client
	sinks     map[string]gateway.WebhookSink
	bufferCap int64
}

// NewWebhook creates the webhook handler. A nil client gets a shared
// default; bufferCap <= 0 falls back to DefaultProxyBufferBytes.
func NewWebhook(client *http.Client, sinks map[string]gateway.WebhookSink, bufferCap int64) *Webhook {
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = 32
		client = &http.Client{Transport: transport}
	}
	if bufferCap <= 0 {
		bufferCap = DefaultProxyBufferBytes
	}
	return &Webhook{client: client, sinks: sinks, bufferCap: bufferCap}
}

func (h *Webhook) Handle(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	id := rc.Rest[0]
	sink, ok := h.sinks[id]
	if !ok {
		return gateway.NotFound("Webhook '%s' not found", id)
	}

	body, length, err := outboundBody(r, h.bufferCap)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, sink.URL, body)
	if err != nil {
		return gateway.Internal(err)
	}
	req.ContentLength = length

	copyInbound(req.Header, r.Header)
	// Sink headers win: they typically carry the sink's own credentials.
	for k, v := range sink.Headers {
		req.Header.Set(k, v)
	}

	logger.DebugCtx(r.Context(), "forwarding webhook",
		logger.Webhook(id),
		logger.Upstream(sink.URL),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return upstreamError(r.Context(), err)
	}
	defer resp.Body.Close()

	copyOutbound(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.WarnCtx(r.Context(), "webhook stream interrupted", logger.Err(err))
	}
	return nil
}
