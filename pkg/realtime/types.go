package realtime

// ClientMessageType discriminates frames sent from an editor to the document
// authority.
type ClientMessageType string

const (
	ClientMessageTypeGet    ClientMessageType = "get"
	ClientMessageTypeUpdate ClientMessageType = "update"
)

// ServerMessageType discriminates frames pushed by the document authority.
type ServerMessageType string

const (
	ServerMessageTypeCurrent      ServerMessageType = "current"
	ServerMessageTypeCodeUpdated  ServerMessageType = "code_updated"
	ServerMessageTypeAcknowledged ServerMessageType = "acknowledged"
)

// ClientEnvelope is one client→server frame. UserID is always set so the
// authority can scope document state per session.
type ClientEnvelope struct {
	Type    ClientMessageType `json:"type"`
	Content *string           `json:"content,omitempty"`
	UserID  string            `json:"user_id"`
}

// ServerEnvelope is one server→client frame. Content is a pointer so that an
// empty document ("") can be told apart from a missing field.
type ServerEnvelope struct {
	Type    ServerMessageType `json:"type"`
	Content *string           `json:"content,omitempty"`
	Message string            `json:"message,omitempty"`
}

// NewGet builds the bootstrap request sent right after a connection opens.
func NewGet(userID string) ClientEnvelope {
	return ClientEnvelope{Type: ClientMessageTypeGet, UserID: userID}
}

// NewUpdate builds a full-content replacement request.
func NewUpdate(userID, content string) ClientEnvelope {
	return ClientEnvelope{Type: ClientMessageTypeUpdate, Content: &content, UserID: userID}
}

func NewCurrent(content string) ServerEnvelope {
	return ServerEnvelope{Type: ServerMessageTypeCurrent, Content: &content}
}

func NewCodeUpdated(content string) ServerEnvelope {
	return ServerEnvelope{Type: ServerMessageTypeCodeUpdated, Content: &content}
}

func NewAcknowledged(message string) ServerEnvelope {
	return ServerEnvelope{Type: ServerMessageTypeAcknowledged, Message: message}
}

// CarriesContent reports whether the frame replaces the document.
func (e ServerEnvelope) CarriesContent() bool {
	switch e.Type {
	case ServerMessageTypeCurrent, ServerMessageTypeCodeUpdated:
		return e.Content != nil
	default:
		return false
	}
}
