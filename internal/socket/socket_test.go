package socket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/reiase/probing-go/internal/registry"
	"github.com/reiase/probing-go/internal/repl"
	"github.com/reiase/probing-go/internal/sqlengine"
	"github.com/reiase/probing-go/internal/virtual"
)

func TestParseEndpointTCP(t *testing.T) {
	network, address := ParseEndpoint("127.0.0.1:9999")
	if network != "tcp" || address != "127.0.0.1:9999" {
		t.Fatalf("got network=%q address=%q", network, address)
	}
}

func TestParseEndpointAbstractUnix(t *testing.T) {
	network, address := ParseEndpoint("my-agent-id")
	if network != "unix" || address != "@probing-my-agent-id" {
		t.Fatalf("got network=%q address=%q", network, address)
	}
}

func TestParseEndpointEmptyDefaultsToUnix(t *testing.T) {
	network, _ := ParseEndpoint("")
	if network != "unix" {
		t.Fatalf("empty endpoint should still pick a usable default, got network=%q", network)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.New()
	vr := virtual.NewResolver()
	session := repl.New(sqlengine.New(reg, vr), reg)
	return New(session)
}

func TestServeHTTPRoundTripsReply(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "done")

	if err := c.Write(ctx, websocket.MessageText, []byte("SHOW TABLES\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"status":"ok"`) {
		t.Fatalf("expected an ok reply, got %s", data)
	}
}

func TestServeHTTPSerialisesRequestsPerConnection(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "done")

	for i := 0; i < 3; i++ {
		if err := c.Write(ctx, websocket.MessageText, []byte("a := 1\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		_, data, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !strings.Contains(string(data), `"status":"ok"`) {
			t.Fatalf("request %d: expected ok reply, got %s", i, data)
		}
	}
}
