// Package activator decides, from a single environment variable
// (PROBING), whether the host process attaches the probing agent, and
// whether that decision propagates to child processes. Follows
// cmd/hostapp/main.go's startup-decision style (read env, decide what
// to boot, never abort the host) and the
// pdeathsig_linux.go/pdeathsig_stub.go build-tag split, reused here for
// the ancestor-attached check.
package activator

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/reiase/probing-go/internal/probelog"
)

var log = probelog.Named("activator")

// Action is what the host should do with the Decision Evaluate returns.
type Action int

const (
	// ActionNone attaches nothing; the host has zero observable footprint.
	ActionNone Action = iota
	// ActionAttach boots the agent in this process.
	ActionAttach
)

// Decision is the result of evaluating PROBING for the current process.
type Decision struct {
	Action Action
	// Propagate reports whether child processes should see the same
	// PROBING value unchanged. When false, the host should clear (or set
	// to "0") the variable before spawning children.
	Propagate bool
	// ChildEnv is the PROBING value children should inherit when
	// Propagate is true.
	ChildEnv string
}

// Decide interprets one PROBING value against the current process's
// argv[0], per the table in It never returns an error: a
// malformed value (e.g. an invalid regex) degrades to ActionNone rather
// than aborting the host.
func Decide(raw, argv0 string) Decision {
	switch {
	case raw == "" || raw == "0":
		return Decision{Action: ActionNone}

	case raw == "1" || raw == "followed":
		return Decision{Action: ActionAttach, Propagate: false, ChildEnv: "0"}

	case raw == "2" || raw == "nested":
		return Decision{Action: ActionAttach, Propagate: true, ChildEnv: raw}

	case strings.HasPrefix(raw, "regex:"):
		pattern := strings.TrimPrefix(raw, "regex:")
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warnw("invalid PROBING regex, not attaching", "pattern", pattern, "error", err)
			return Decision{Action: ActionNone, Propagate: true, ChildEnv: raw}
		}
		d := Decision{Propagate: true, ChildEnv: raw}
		if re.MatchString(filepath.Base(argv0)) {
			d.Action = ActionAttach
		}
		return d

	case strings.HasPrefix(raw, "init:"):
		// Resolved by Evaluate, which can run the init script; Decide
		// itself is pure and side-effect free so it reports the parsed
		// path/value pair as a no-attach decision with the indirection
		// intact in ChildEnv for Evaluate to unwrap.
		return Decision{Action: ActionNone, ChildEnv: raw}

	default:
		// <scriptname>: attach iff this process's own basename matches.
		d := Decision{Propagate: true, ChildEnv: raw}
		if filepath.Base(argv0) == raw {
			d.Action = ActionAttach
		}
		return d
	}
}

// parseInit splits "init:PATH[+VALUE]" into its path and follow-up value,
// defaulting VALUE to "0"
func parseInit(raw string) (path, value string) {
	rest := strings.TrimPrefix(raw, "init:")
	if i := strings.Index(rest, "+"); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return rest, "0"
}

// Evaluate reads PROBING via getenv, runs any "init:" indirection, checks
// for an already-attached ancestor, and returns the final Decision. It
// never aborts the host: a bad env value degrades to ActionNone, an init
// script exec error is logged and evaluation continues with VALUE, and an
// unreadable /proc entry counts as no ancestor being attached.
func Evaluate(getenv func(string) string, argv0 string) Decision {
	raw := getenv("PROBING")
	d := Decide(raw, argv0)

	for strings.HasPrefix(d.ChildEnv, "init:") && d.Action == ActionNone {
		path, value := parseInit(d.ChildEnv)
		if err := runInitScript(path); err != nil {
			log.Warnw("PROBING init script failed, continuing", "path", path, "error", err)
		}
		d = Decide(value, argv0)
	}

	if d.Action == ActionAttach && AlreadyAttached() {
		log.Infow("ancestor process already attached, skipping")
		return Decision{Action: ActionNone, Propagate: d.Propagate, ChildEnv: d.ChildEnv}
	}
	return d
}

// runInitScript executes PATH as a child process. The original design
// calls an initialisation function in-process; Go has no equivalent to
// dynamically importing and calling into arbitrary source, so running it
// as a subprocess is the closest faithful translation (see DESIGN.md).
func runInitScript(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	cmd := exec.CommandContext(context.Background(), path)
	return cmd.Run()
}
