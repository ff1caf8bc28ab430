package api

import (
	"encoding/json"
	"testing"
)

func TestEventType_Values(t *testing.T) {
	types := []EventType{
		EventTypeStart,
		EventTypeAgentComplete,
		EventTypeComplete,
	}

	expected := []string{"start", "agent_complete", "complete"}

	for i, et := range types {
		if string(et) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], et)
		}
	}
}

func TestChatRequest_UsesCamelCaseUserID(t *testing.T) {
	var req ChatRequest
	if err := json.Unmarshal([]byte(`{"query":"draw","userId":"user-1"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Query != "draw" || req.UserID != "user-1" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestAskRequest_UsesSnakeCaseUserID(t *testing.T) {
	data, err := json.Marshal(AskRequest{Query: "draw", UserID: "user-1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"query":"draw","user_id":"user-1"}` {
		t.Fatalf("unexpected body: %s", data)
	}
}

func TestErrorResponse_OmitsEmptyDetails(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: "Failed to process request"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"error":"Failed to process request"}` {
		t.Fatalf("unexpected body: %s", data)
	}
}
