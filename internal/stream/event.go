package stream

import (
	"encoding/json"
	"fmt"

	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

// Event is one parsed assistant stream event. Data keeps every field of the
// frame so that unrecognised event types survive untouched.
type Event struct {
	Type apiTypes.EventType `json:"type"`
	Data map[string]any     `json:"-"`
	raw  []byte
}

// ParseEvent parses the JSON payload of one `data: ` line.
func ParseEvent(payload []byte) (Event, error) {
	if len(payload) == 0 {
		return Event{}, fmt.Errorf("empty event")
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return Event{}, fmt.Errorf("failed to parse event: %w", err)
	}
	eventType, ok := data["type"].(string)
	if !ok || eventType == "" {
		return Event{}, fmt.Errorf("event has no type discriminator")
	}

	raw := make([]byte, len(payload))
	copy(raw, payload)
	return Event{
		Type: apiTypes.EventType(eventType),
		Data: data,
		raw:  raw,
	}, nil
}

// GetString returns a top-level string field.
func (e Event) GetString(key string) (string, bool) {
	value, ok := e.Data[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Message is set on start and complete events.
func (e Event) Message() string {
	s, _ := e.GetString("message")
	return s
}

// Agent is set on agent_complete events.
func (e Event) Agent() string {
	s, _ := e.GetString("agent")
	return s
}

// Result is set on agent_complete events.
func (e Event) Result() string {
	s, _ := e.GetString("result")
	return s
}

// Raw returns the original JSON payload.
func (e Event) Raw() []byte {
	return e.raw
}

func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	if e.Data != nil {
		return json.Marshal(e.Data)
	}
	return json.Marshal(map[string]any{"type": e.Type})
}
