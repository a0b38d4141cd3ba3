// Package socket implements a UNIX domain or TCP listener speaking one
// WebSocket connection per client, each frame a raw source-text request
// answered by a JSON reply. Follows internal/ws/echo.go's accept loop,
// read deadline, and frame loop, and internal/api/router.go's use of
// nhooyr.io/websocket for the HTTP upgrade.
package socket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/reiase/probing-go/internal/probelog"
	"github.com/reiase/probing-go/internal/repl"
)

var log = probelog.Named("socket")

// ReadTimeout bounds how long the server waits for the next frame on an
// idle connection; when it expires the connection is closed. It also
// bounds each reply write. It is not a query timeout — cancelling an
// in-flight query is left to the operator.
const ReadTimeout = 30 * time.Second

// ParseEndpoint maps a PROBING_ENDPOINT value to a net.Listen network and
// address: a string that parses as host:port is a TCP
// endpoint; anything else is treated as the <id> of an abstract-namespace
// UNIX socket. Go's net package maps a leading '@' in a "unix" address to
// the Linux abstract namespace (an actual leading NUL byte in the
// sockaddr), which is how a `\0probing-<id>` abstract socket name is
// realised here.
func ParseEndpoint(raw string) (network, address string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "default"
	}
	if _, _, err := net.SplitHostPort(raw); err == nil {
		return "tcp", raw
	}
	return "unix", "@probing-" + raw
}

// Server serves REPL/SQL requests over WebSocket frames against a single
// shared repl.Session "each request is serialised
// against the single REPL state" requirement.
type Server struct {
	session *repl.Session
	http    *http.Server
}

// New builds a Server bound to session.
func New(session *repl.Session) *Server {
	s := &Server{session: session}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.http = &http.Server{Handler: mux}
	return s
}

// Serve listens on network/address (as returned by ParseEndpoint) and
// blocks until ctx is cancelled or the listener errors. It never panics
// the host on a malformed endpoint: listen errors are returned to the
// caller rather than fatal.
func (s *Server) Serve(ctx context.Context, network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener runs the HTTP/WebSocket server over an already-opened
// listener, useful for tests that want an ephemeral TCP port or an
// in-memory pipe.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		return
	}
	connID := uuid.NewString()
	defer c.Close(websocket.StatusNormalClosure, "bye")
	log.Debugw("client connected", "conn", connID)

	for {
		ctx, cancel := context.WithTimeout(r.Context(), ReadTimeout)
		typ, data, err := c.Read(ctx)
		cancel()
		if err != nil {
			// Socket disconnect silently abandons any in-flight reply,
			//; there is nothing further to report.
			log.Debugw("client disconnected", "conn", connID, "error", err)
			return
		}

		fragment := strings.TrimRight(string(data), "\n")
		reply := s.session.Execute(r.Context(), fragment)
		payload, err := encodeReply(reply)
		if err != nil {
			log.Warnw("failed to encode reply", "conn", connID, "error", err)
			return
		}

		wctx, wcancel := context.WithTimeout(r.Context(), ReadTimeout)
		err = c.Write(wctx, typ, payload)
		wcancel()
		if err != nil {
			log.Debugw("write failed, client likely gone", "conn", connID, "error", err)
			return
		}
	}
}
