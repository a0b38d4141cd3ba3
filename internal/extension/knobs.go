package extension

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reiase/probing-go/internal/sqlengine"
)

// unquote strips a single layer of surrounding quotes from a SET value,
// matching the convention sqlengine's own SET handler uses for string
// literals.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && ((s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"')) {
		return s[1 : len(s)-1]
	}
	return s
}

// RegisterKnobs wires `SET probing.python.enabled/disabled` and the two
// collective knobs onto engine.
func (l *Loader) RegisterKnobs(engine *sqlengine.Engine) {
	engine.RegisterKnob("python.enabled", func(value string) error {
		return l.Enable(unquote(value))
	})
	engine.RegisterKnob("python.disabled", func(value string) error {
		return l.Disable(unquote(value))
	})
	engine.RegisterKnob("collective.trace", func(value string) error {
		return l.toggleBool("probing.ext.collective", value)
	})
	engine.RegisterKnob("collective.trace_verbose", func(value string) error {
		return l.toggleBool("probing.ext.collective", value)
	})
}

// toggleBool enables or disables path based on a {true,false} SET value,
// collective.trace/collective.trace_verbose knobs.
func (l *Loader) toggleBool(path, value string) error {
	b, err := strconv.ParseBool(unquote(value))
	if err != nil {
		return fmt.Errorf("%w: expected true/false, got %q", sqlengine.ErrInvalidConfig, value)
	}
	if b {
		return l.Enable(path)
	}
	return l.Disable(path)
}
