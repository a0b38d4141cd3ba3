package sqlengine

import (
	"fmt"
	"strings"
)

// runSet handles "SET probing.<knob> = <value>" statements.
func (e *Engine) runSet(stmt string) (Result, error) {
	m := setRe.FindStringSubmatch(stmt)
	if m == nil {
		return Result{}, fmt.Errorf("%w: malformed SET statement", ErrInvalidConfig)
	}
	knob, rawValue := m[1], unquote(m[2])

	setter, ok := e.knobs[knob]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown knob probing.%s", ErrInvalidConfig, knob)
	}
	if err := setter(rawValue); err != nil {
		log.Warnw("SET probing knob failed", "knob", knob, "error", err)
		return Result{}, err
	}
	return Result{
		Names: []string{"knob", "value"},
		Cols: []map[string]any{
			{"knob": []any{knob}},
			{"value": []any{rawValue}},
		},
	}, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
