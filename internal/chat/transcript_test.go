package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/nikhildhole/mermaid-visualizer/internal/stream"
	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

type fakeAsker struct {
	snapshots []stream.Snapshot
	err       error

	query  string
	userID string
	calls  int
}

func (f *fakeAsker) Ask(_ context.Context, query, userID string, sink stream.SnapshotFunc) (stream.Snapshot, error) {
	f.calls++
	f.query, f.userID = query, userID
	var last stream.Snapshot
	for _, s := range f.snapshots {
		sink(s)
		last = s
	}
	return last, f.err
}

func mustEvent(t *testing.T, payload string) stream.Event {
	t.Helper()
	ev, err := stream.ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent(%s) failed: %v", payload, err)
	}
	return ev
}

func TestTranscript_StartsWithGreeting(t *testing.T) {
	turns := NewTranscript(&fakeAsker{}, "u1").Turns()
	if len(turns) != 1 || turns[0].Role != RoleBot || turns[0].Text != Greeting {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestTranscript_SendStreamsAnswer(t *testing.T) {
	start := mustEvent(t, `{"type":"start","message":"go"}`)
	done := mustEvent(t, `{"type":"agent_complete","agent":"A","result":"42"}`)
	asker := &fakeAsker{snapshots: []stream.Snapshot{
		{Events: []stream.Event{start}},
		{Answer: "42", Events: []stream.Event{start, done}},
	}}
	tr := NewTranscript(asker, "u1")

	var seen []Turn
	tr.OnChange = func(turn Turn) { seen = append(seen, turn) }

	if err := tr.Send(context.Background(), "what is the answer?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if asker.query != "what is the answer?" || asker.userID != "u1" {
		t.Fatalf("asked %q as %q", asker.query, asker.userID)
	}

	turns := tr.Turns()
	if len(turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(turns))
	}
	if turns[1].Role != RoleUser || turns[1].Text != "what is the answer?" {
		t.Fatalf("user turn = %+v", turns[1])
	}
	bot := turns[2]
	if bot.Role != RoleBot || bot.Text != "42" || bot.Pending {
		t.Fatalf("bot turn = %+v", bot)
	}
	if len(bot.Events) != 2 || bot.Events[1].Type != apiTypes.EventTypeAgentComplete {
		t.Fatalf("bot events = %+v", bot.Events)
	}
	if turns[1].ID == bot.ID || bot.ID == "" {
		t.Fatalf("turn ids not unique: %q %q", turns[1].ID, bot.ID)
	}

	// user append, pending bot append, two snapshots, completion
	if len(seen) != 5 {
		t.Fatalf("change notifications = %d, want 5", len(seen))
	}
	if !seen[1].Pending || seen[1].Text != "" {
		t.Fatalf("pending turn = %+v", seen[1])
	}
}

func TestTranscript_FailureReplacesPendingTurnOnce(t *testing.T) {
	asker := &fakeAsker{
		snapshots: []stream.Snapshot{{Answer: "partial"}},
		err:       stream.ErrNoBody,
	}
	tr := NewTranscript(asker, "u1")

	err := tr.Send(context.Background(), "hi")
	if !errors.Is(err, stream.ErrStreamFailed) {
		t.Fatalf("Send() error = %v, want ErrStreamFailed", err)
	}

	turns := tr.Turns()
	if len(turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(turns))
	}
	var failures int
	for _, turn := range turns {
		if turn.Text == FailureMessage {
			failures++
		}
	}
	if failures != 1 || turns[2].Text != FailureMessage || turns[2].Pending {
		t.Fatalf("bot turn = %+v, failures = %d", turns[2], failures)
	}
}

func TestTranscript_IgnoresBlankQueries(t *testing.T) {
	for _, query := range []string{"", "   ", "\n\t"} {
		asker := &fakeAsker{}
		tr := NewTranscript(asker, "u1")
		if err := tr.Send(context.Background(), query); err != nil {
			t.Fatalf("Send(%q) error = %v", query, err)
		}
		if asker.calls != 0 || len(tr.Turns()) != 1 {
			t.Fatalf("blank query %q was sent", query)
		}
	}
}
