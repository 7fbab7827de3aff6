// Package session defines the capability boundary between the
// admission gateway and the world runtime that owns live connections.
package session

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Authority owns a connection's lifecycle and application protocol
// after admission. Accept receives the live channel and the opaque
// auth token exactly once per admitted connection; the caller retains
// no reference afterward. Token validation is the authority's
// concern, not the gateway's.
type Authority interface {
	Accept(ctx context.Context, conn *websocket.Conn, authToken string)
}

// Roster exposes who is currently connected, for status reporting.
type Roster interface {
	ConnectedUsers() []string
}

// StubAuthority is a minimal in-process authority: it tracks admitted
// connections in a roster and drains inbound frames until the peer or
// the server context closes the channel. It stands in for the real
// world runtime so the server runs stand-alone and tests can observe
// handoffs.
type StubAuthority struct {
	logger zerolog.Logger

	mu      sync.Mutex
	players map[uuid.UUID]string
}

func NewStubAuthority(logger zerolog.Logger) *StubAuthority {
	return &StubAuthority{
		logger:  logger,
		players: make(map[uuid.UUID]string),
	}
}

func (a *StubAuthority) Accept(ctx context.Context, conn *websocket.Conn, authToken string) {
	id := uuid.New()
	name := "player-" + id.String()[:8]

	a.mu.Lock()
	a.players[id] = name
	a.mu.Unlock()

	a.logger.Info().
		Str("session_id", id.String()).
		Bool("has_token", authToken != "").
		Msg("session admitted")

	go a.serve(ctx, id, conn)
}

func (a *StubAuthority) serve(ctx context.Context, id uuid.UUID, conn *websocket.Conn) {
	defer func() {
		a.mu.Lock()
		delete(a.players, id)
		a.mu.Unlock()
		a.logger.Info().Str("session_id", id.String()).Msg("session closed")
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		}
	}
}

func (a *StubAuthority) ConnectedUsers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	users := make([]string, 0, len(a.players))
	for _, name := range a.players {
		users = append(users, name)
	}
	return users
}
