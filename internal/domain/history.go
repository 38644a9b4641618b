package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is one completed tool invocation. Records are values: the history
// store clones the payloads on append and callers must treat the raw JSON
// fields as read-only.
type Record struct {
	ToolName   string          `json:"tool_name"`
	Timestamp  Timestamp       `json:"timestamp"`
	DurationMS int64           `json:"duration_ms"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Success    bool            `json:"success"`
	InstanceID string          `json:"instance_id,omitempty"`
	Seq        uint64          `json:"seq,omitempty"`
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	r.Arguments = cloneRaw(r.Arguments)
	r.Output = cloneRaw(r.Output)
	return r
}

// Invocation is what the tool-execution framework reports when a call ends.
type Invocation struct {
	ToolName   string          `json:"tool_name"`
	Timestamp  Timestamp       `json:"timestamp"`
	DurationMS int64           `json:"duration_ms"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Success    bool            `json:"success"`
}

// Validate checks the fields a Record cannot do without.
func (inv Invocation) Validate() error {
	if strings.TrimSpace(inv.ToolName) == "" {
		return fmt.Errorf("%w: tool_name is required", ErrInvalidInvocation)
	}
	if inv.DurationMS < 0 {
		return fmt.Errorf("%w: duration_ms must be >= 0, got %d", ErrInvalidInvocation, inv.DurationMS)
	}
	if len(inv.Arguments) > 0 && !json.Valid(inv.Arguments) {
		return fmt.Errorf("%w: arguments is not valid JSON", ErrInvalidInvocation)
	}
	if len(inv.Output) > 0 && !json.Valid(inv.Output) {
		return fmt.Errorf("%w: output is not valid JSON", ErrInvalidInvocation)
	}
	return nil
}

// Record converts the invocation into a Record, stamping now when the
// invocation carries no timestamp. Failed calls keep no output.
func (inv Invocation) Record(now time.Time) Record {
	ts := inv.Timestamp
	if ts.IsZero() {
		ts = NewTimestamp(now)
	}
	rec := Record{
		ToolName:   strings.TrimSpace(inv.ToolName),
		Timestamp:  ts,
		DurationMS: inv.DurationMS,
		Arguments:  cloneRaw(inv.Arguments),
		Success:    inv.Success,
	}
	if inv.Success {
		rec.Output = cloneRaw(inv.Output)
	}
	return rec
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return json.RawMessage(bytes.Clone(raw))
}
