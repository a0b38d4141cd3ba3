// Command probingctl is a REPL client for the agent's socket server: it
// dials PROBING_ENDPOINT, sends each argument (or each stdin line,
// interactively) as one source fragment, and prints the JSON reply.
// Follows internal/ws's client-dial usage of nhooyr.io/websocket and
// cmd/hostapp/main.go's flag-light, env-driven CLI style.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/reiase/probing-go/internal/socket"
)

func main() {
	endpoint := strings.TrimSpace(os.Getenv("PROBING_ENDPOINT"))
	if endpoint == "" {
		endpoint = "default"
	}
	network, address := socket.ParseEndpoint(endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws://probing/", &websocket.DialOptions{
		HTTPClient: dialerClient(network, address),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s %s: %v\n", network, address, err)
		os.Exit(1)
	}
	defer c.Close(websocket.StatusNormalClosure, "bye")

	if len(os.Args) > 1 {
		for _, fragment := range os.Args[1:] {
			if err := sendFragment(context.Background(), c, fragment); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := sendFragment(context.Background(), c, line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// dialerClient builds an http.Client whose transport dials network/address
// regardless of the URL passed to Dial, since the "unix"-network abstract
// socket case has no meaningful host:port to route on.
func dialerClient(network, address string) *http.Client {
	var d net.Dialer
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return d.DialContext(ctx, network, address)
			},
		},
	}
}

func sendFragment(ctx context.Context, c *websocket.Conn, fragment string) error {
	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.Write(wctx, websocket.MessageText, []byte(fragment)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
	defer rcancel()
	_, data, err := c.Read(rctx)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
