// Package gateway bridges stateless HTTP to the persistent channel
// owned by the session authority.
package gateway

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/worldgate/platform/server/internal/session"
)

// Gateway upgrades HTTP requests to WebSocket channels and performs a
// single handoff per connection. It holds no cross-connection state:
// every upgrade is handled independently and ownership transfers
// entirely at the Accept call.
type Gateway struct {
	authority session.Authority
	logger    zerolog.Logger

	// lifetime outlives individual requests; hijacked channels are
	// bound to it so server shutdown can reach sessions the stub
	// authority still serves.
	lifetime context.Context
}

func New(authority session.Authority, lifetime context.Context, logger zerolog.Logger) *Gateway {
	return &Gateway{
		authority: authority,
		logger:    logger,
		lifetime:  lifetime,
	}
}

// ServeHTTP handles the upgrade endpoint. The authToken query param
// is forwarded verbatim; missing or malformed tokens are the
// authority's problem. A request without proper upgrade headers fails
// the accept and triggers no handoff.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("authToken")

	opts := &websocket.AcceptOptions{}
	if origins := originPatterns(os.Getenv("WS_ALLOWED_ORIGINS")); len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		g.logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade rejected")
		return
	}

	g.authority.Accept(g.lifetime, conn, token)
}

func originPatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
