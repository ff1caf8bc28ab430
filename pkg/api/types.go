package api

// EventType is the `type` discriminator of one streamed assistant event.
type EventType string

const (
	EventTypeStart         EventType = "start"
	EventTypeAgentComplete EventType = "agent_complete"
	EventTypeComplete      EventType = "complete"
)

// ChatRequest is the body accepted by the chat proxy route. The browser
// sends the session id as camel-cased userId.
type ChatRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
}

// AskRequest is the body forwarded to the assistant backend.
type AskRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// StartEvent, AgentCompleteEvent and CompleteEvent are the recognised
// stream payloads. Unrecognised payloads travel as free-form objects.
type StartEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
}

type AgentCompleteEvent struct {
	Type   EventType `json:"type"`
	Agent  string    `json:"agent,omitempty"`
	Result string    `json:"result,omitempty"`
}

type CompleteEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
