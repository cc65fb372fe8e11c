package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// Delimiter separates adjacent frames on the wire.
	Delimiter = "\n\n"

	// DataPrefix marks the payload line within a frame.
	DataPrefix = "data:"
)

var delimiter = []byte(Delimiter)

// EncodeFrame returns the wire encoding of e: a single data line holding the
// JSON payload, terminated by the frame delimiter.
//
// JSON escapes newlines inside strings, so token text can never produce a
// premature delimiter.
func EncodeFrame(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", e.Kind, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(DataPrefix) + 1 + len(data) + len(Delimiter))
	buf.WriteString(DataPrefix)
	buf.WriteByte(' ')
	buf.Write(data)
	buf.WriteString(Delimiter)
	return buf.Bytes(), nil
}

// fields is the decoded content of one frame. Each field is only set when it
// is present with the expected JSON type.
type fields struct {
	token *string
	err   *string
	done  bool
}

// parseFrame locates the first data line of a frame and decodes its JSON
// payload. It returns false when the frame has no data line or the payload
// is not a JSON object.
func parseFrame(frame []byte) (fields, bool) {
	var payload string
	found := false
	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, DataPrefix) {
			payload = strings.TrimSpace(strings.TrimPrefix(line, DataPrefix))
			found = true
			break
		}
	}
	if !found {
		return fields{}, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		return fields{}, false
	}

	var f fields
	if tok, ok := obj["token"].(string); ok {
		f.token = &tok
	}
	if msg, ok := obj["error"].(string); ok {
		f.err = &msg
	}
	if done, ok := obj["done"].(bool); ok && done {
		f.done = true
	}
	return f, true
}
