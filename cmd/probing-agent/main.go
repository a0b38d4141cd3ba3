// Command probing-agent is the standalone demo harness for the agent
// library: it evaluates PROBING the same way an embedded host would,
// then (if attached) serves the REPL/SQL socket until signalled to
// stop. Follows cmd/hostapp/main.go's subcommand dispatch,
// config.Load -> Validate -> log.Fatalf, and signal.NotifyContext for
// graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	"os/signal"

	"github.com/reiase/probing-go/internal/activator"
	"github.com/reiase/probing-go/internal/agent"
	"github.com/reiase/probing-go/internal/config"
)

func main() {
	log.SetFlags(0)
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "init":
		if err := config.Save(config.Default()); err != nil {
			log.Fatalf("init failed: %v", err)
		}
		fmt.Println("config written to", config.ConfigPath())
		return
	case "serve":
		// continue
	default:
		log.Fatalf("unknown command: %s (use 'init' or 'serve')", cmd)
	}

	decision := activator.Evaluate(os.Getenv, os.Args[0])
	if decision.Action != activator.ActionAttach {
		log.Printf("PROBING=%q does not select this process, exiting without attaching", os.Getenv("PROBING"))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	a, err := agent.Boot(cfg)
	if err != nil {
		log.Fatalf("boot agent: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("probing-agent attached, endpoint=%q", cfg.Endpoint)
	if err := a.Serve(ctx, cfg.Endpoint); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
