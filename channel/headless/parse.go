package headless

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// resultKey marks the single structured result line the bridge script emits.
// Engine log noise around it is ignored.
const resultKey = "godot_mcp"

// result is the decoded bridge-script outcome: exactly one of Value or Error
// is meaningful, selected by the Error field.
type result struct {
	Value any
	Error string
}

// envelope is the wire shape under the marker key.
type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// extractResult scans captured stdout for the structured result line. The
// contract requires exactly one such line before exit; zero or several is a
// protocol error.
func extractResult(stdout []byte) (result, error) {
	var found *envelope
	count := 0

	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			continue
		}
		raw, ok := obj[resultKey]
		if !ok {
			continue
		}
		count++
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return result{}, fmt.Errorf("%w: malformed result marker: %v", channel.ErrProtocol, err)
		}
		found = &env
	}
	if err := sc.Err(); err != nil {
		return result{}, fmt.Errorf("%w: reading output: %v", channel.ErrProtocol, err)
	}

	switch {
	case count == 0:
		return result{}, fmt.Errorf("%w: no result line in process output", channel.ErrProtocol)
	case count > 1:
		return result{}, fmt.Errorf("%w: %d result lines in process output, want 1", channel.ErrProtocol, count)
	}

	if !found.OK {
		msg := found.Error
		if msg == "" {
			msg = "unspecified failure"
		}
		return result{Error: msg}, nil
	}

	var value any
	if len(found.Result) > 0 {
		if err := json.Unmarshal(found.Result, &value); err != nil {
			return result{}, fmt.Errorf("%w: undecodable result value: %v", channel.ErrProtocol, err)
		}
	}
	return result{Value: value}, nil
}
