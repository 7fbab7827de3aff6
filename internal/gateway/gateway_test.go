package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

type recordingAuthority struct {
	mu     sync.Mutex
	tokens []string
	conns  []*websocket.Conn
}

func (a *recordingAuthority) Accept(_ context.Context, conn *websocket.Conn, authToken string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = append(a.tokens, authToken)
	a.conns = append(a.conns, conn)
}

func (a *recordingAuthority) handoffs() ([]string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.tokens...), len(a.conns)
}

func newTestGateway(t *testing.T) (*recordingAuthority, *httptest.Server) {
	t.Helper()
	authority := &recordingAuthority{}
	gw := New(authority, context.Background(), zerolog.Nop())
	ts := httptest.NewServer(gw)
	t.Cleanup(ts.Close)
	return authority, ts
}

func TestUpgradeHandsOffTokenAndChannel(t *testing.T) {
	authority, ts := newTestGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?authToken=XYZ"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	tokens, channels := authority.handoffs()
	if channels != 1 {
		t.Fatalf("handoffs = %d, want exactly 1", channels)
	}
	if tokens[0] != "XYZ" {
		t.Fatalf("token = %q, want XYZ", tokens[0])
	}
}

func TestMissingTokenForwardedAsEmpty(t *testing.T) {
	authority, ts := newTestGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	tokens, channels := authority.handoffs()
	if channels != 1 {
		t.Fatalf("handoffs = %d, want 1", channels)
	}
	if tokens[0] != "" {
		t.Fatalf("token = %q, want empty", tokens[0])
	}
}

func TestPlainGetTriggersNoHandoff(t *testing.T) {
	authority, ts := newTestGateway(t)

	resp, err := http.Get(ts.URL + "/?authToken=XYZ")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("plain GET status = %d, want an upgrade failure", resp.StatusCode)
	}

	if _, channels := authority.handoffs(); channels != 0 {
		t.Fatalf("handoffs = %d, want 0", channels)
	}
}

func TestOriginPatterns(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"  ", 0},
		{"example.com", 1},
		{"a.com, b.com,", 2},
	}
	for _, tc := range cases {
		if got := originPatterns(tc.raw); len(got) != tc.want {
			t.Errorf("originPatterns(%q) = %v, want %d entries", tc.raw, got, tc.want)
		}
	}
}
