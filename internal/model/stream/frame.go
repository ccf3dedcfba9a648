package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame types carried on the consultation WebSocket.
const (
	TypeConnected       = "connected"
	TypeMessage         = "message"
	TypeMessageReceived = "message_received"
	TypeStreamChunk     = "stream_chunk"
	TypeStreamComplete  = "stream_complete"
	TypeError           = "error"
)

// Frame is a single JSON record on the consultation socket.
type Frame struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	Error          string `json:"error,omitempty"`
	ConsultationID string `json:"consultation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// ParseBatch splits one physical WebSocket message into its newline-delimited
// records and decodes each one. Blank lines are skipped.
func ParseBatch(payload []byte) ([]Frame, error) {
	var frames []Frame
	err := eachLine(payload, func(line []byte) error {
		var frame Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			return err
		}
		frames = append(frames, frame)
		return nil
	})
	return frames, err
}

// Record is an inbound record decoded loosely: only type is interpreted up
// front, content and error stay raw until the caller asks for them. Fields the
// reader never looks at (ids, timestamps) may carry any JSON type.
type Record struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Text returns content as a string. A missing or null content is "".
func (r Record) Text() (string, error) {
	if isNull(r.Content) {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(r.Content, &text); err != nil {
		return "", fmt.Errorf("decode %s content: %w", r.Type, err)
	}
	return text, nil
}

// ErrorText renders the error payload for logs: strings are unquoted, any
// other JSON value is returned compacted.
func (r Record) ErrorText() string {
	if isNull(r.Error) {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Error, &text); err == nil {
		return text
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.Error); err != nil {
		return string(r.Error)
	}
	return buf.String()
}

// ParseRecords is ParseBatch for readers that must tolerate unknown field shapes.
func ParseRecords(payload []byte) ([]Record, error) {
	var records []Record
	err := eachLine(payload, func(line []byte) error {
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	return records, err
}

func eachLine(payload []byte, decode func(line []byte) error) error {
	for i, line := range bytes.Split(payload, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			return fmt.Errorf("decode frame line %d: %w", i+1, err)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// EncodeBatch joins frames into one newline-delimited payload.
func EncodeBatch(frames ...Frame) ([]byte, error) {
	var buf bytes.Buffer
	for i, frame := range frames {
		data, err := json.Marshal(frame)
		if err != nil {
			return nil, fmt.Errorf("encode frame %s: %w", frame.Type, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
