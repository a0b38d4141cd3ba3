package socket

import (
	"encoding/json"

	"github.com/reiase/probing-go/internal/repl"
)

func encodeReply(r repl.Reply) ([]byte, error) {
	return json.Marshal(r)
}
