package httpclient

import (
	nethttp "net/http"
	"time"
)

// logRequest emits a debug line for the outgoing request. Payload bytes are
// only included when payload logging is enabled, truncated to the
// configured cap.
func (c *Client) logRequest(req *nethttp.Request, attempt int, payload []byte) {
	evt := c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("attempt", attempt+1)

	if c.logPayloads && len(payload) > 0 {
		evt = evt.Bytes("body", truncate(payload, c.maxPayloadLogBytes))
	}

	evt.Msg("REST client request")
}

// logResponse emits a debug line for the completed exchange.
func (c *Client) logResponse(req *nethttp.Request, status int, elapsed time.Duration, body []byte) {
	evt := c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", status).
		Dur("elapsed", elapsed)

	if c.logPayloads && len(body) > 0 {
		evt = evt.Bytes("body", truncate(body, c.maxPayloadLogBytes))
	}

	evt.Msg("REST client response")
}

func truncate(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}
