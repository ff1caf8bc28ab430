// Package chat keeps the assistant conversation shown next to the editor.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nikhildhole/mermaid-visualizer/internal/stream"
)

const (
	Greeting       = "Hello! How can I help you today?"
	FailureMessage = "❌ Error: could not reach server."
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type Turn struct {
	ID        string
	Role      Role
	Text      string
	Pending   bool
	Events    []stream.Event
	CreatedAt time.Time
}

// Asker runs one streaming query. *stream.Client satisfies it.
type Asker interface {
	Ask(ctx context.Context, query, userID string, sink stream.SnapshotFunc) (stream.Snapshot, error)
}

var _ Asker = (*stream.Client)(nil)

// Transcript is safe for concurrent use. OnChange, if set, sees a copy of
// every turn after it changes.
type Transcript struct {
	asker    Asker
	userID   string
	OnChange func(Turn)

	mu    sync.Mutex
	turns []Turn
}

func NewTranscript(asker Asker, userID string) *Transcript {
	return &Transcript{
		asker:  asker,
		userID: userID,
		turns:  []Turn{newTurn(RoleBot, Greeting)},
	}
}

func newTurn(role Role, text string) Turn {
	return Turn{ID: ulid.Make().String(), Role: role, Text: text, CreatedAt: time.Now()}
}

// Send appends the user's query and a pending bot turn, then streams the
// answer into that turn. Blank queries are ignored. On failure the bot turn
// is replaced by FailureMessage and the error is returned.
func (t *Transcript) Send(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	bot := newTurn(RoleBot, "")
	bot.Pending = true
	t.append(newTurn(RoleUser, query))
	t.append(bot)

	_, err := t.asker.Ask(ctx, query, t.userID, func(snap stream.Snapshot) {
		t.update(bot.ID, func(turn *Turn) {
			turn.Text = snap.Answer
			turn.Events = snap.Events
		})
	})
	if err != nil {
		t.update(bot.ID, func(turn *Turn) {
			turn.Text = FailureMessage
			turn.Pending = false
		})
		return err
	}
	t.update(bot.ID, func(turn *Turn) { turn.Pending = false })
	return nil
}

// Turns returns a copy of the conversation in order.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) append(turn Turn) {
	t.mu.Lock()
	t.turns = append(t.turns, turn)
	t.mu.Unlock()
	t.notify(turn)
}

func (t *Transcript) update(id string, fn func(*Turn)) {
	t.mu.Lock()
	var changed Turn
	found := false
	for i := range t.turns {
		if t.turns[i].ID == id {
			fn(&t.turns[i])
			changed, found = t.turns[i], true
			break
		}
	}
	t.mu.Unlock()
	if found {
		t.notify(changed)
	}
}

func (t *Transcript) notify(turn Turn) {
	if t.OnChange != nil {
		t.OnChange(turn)
	}
}
