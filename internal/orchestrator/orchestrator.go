// Package orchestrator is the composition root of an editing session. It
// owns the document state, feeds the session id into the sync client, and
// routes local edits out while keeping remote pushes from echoing back.
package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nikhildhole/mermaid-visualizer/internal/identity"
	"github.com/nikhildhole/mermaid-visualizer/internal/syncclient"
)

// DefaultDocument is shown until the authority answers the first get.
const DefaultDocument = `flowchart TD
    A[Start] --> B{Decision?}
    B -->|Yes| C[Do something]
    B -->|No| D[Do something else]
    C --> E[End]
    D --> E`

// Origin tags where a content update came from.
type Origin int

const (
	// OriginLocal is an edit made by this session's user.
	OriginLocal Origin = iota
	// OriginRemote is content delivered by the authority.
	OriginRemote
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// DocumentState is the current document text and the origin of the update
// that produced it.
type DocumentState struct {
	Content string
	Origin  Origin
}

// Syncer is the duplex client the orchestrator drives.
// *syncclient.Client satisfies it.
type Syncer interface {
	Connect(onContent syncclient.ContentFunc, onConnection syncclient.ConnectionFunc, sessionID string)
	SendUpdate(content string)
	Disconnect()
}

var _ Syncer = (*syncclient.Client)(nil)

type Config struct {
	Syncer   Syncer
	Identity *identity.Provider

	// Initial defaults to DefaultDocument.
	Initial string

	OnChange     func(DocumentState)
	OnConnection func(connected bool)
	Logger       *slog.Logger
}

type Orchestrator struct {
	syncer       Syncer
	identity     *identity.Provider
	onChange     func(DocumentState)
	onConnection func(bool)
	logger       *slog.Logger

	mu        sync.Mutex
	state     DocumentState
	connected bool
	sessionID string
	started   bool
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		syncer:       cfg.Syncer,
		identity:     cfg.Identity,
		onChange:     cfg.OnChange,
		onConnection: cfg.OnConnection,
		logger:       cfg.Logger,
		state:        DocumentState{Content: cfg.Initial, Origin: OriginRemote},
	}
	if o.state.Content == "" {
		o.state.Content = DefaultDocument
	}
	if o.identity == nil {
		o.identity = identity.NewProvider()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o
}

// Start resolves the session id and connects the syncer. Calling it again
// while started is a no-op.
func (o *Orchestrator) Start() error {
	if o.syncer == nil {
		return fmt.Errorf("orchestrator: no syncer configured")
	}
	sessionID, err := o.identity.SessionID()
	if err != nil {
		return fmt.Errorf("resolve session id: %w", err)
	}
	if err := identity.Validate(sessionID); err != nil {
		return err
	}

	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.sessionID = sessionID
	o.mu.Unlock()

	o.logger.Info("starting session", "session_id", sessionID)
	o.syncer.Connect(o.handleRemote, o.handleSyncerConnection, sessionID)
	return nil
}

// Stop disconnects the syncer. The document state is kept.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	o.mu.Unlock()

	if o.syncer != nil {
		o.syncer.Disconnect()
	}
	o.handleConnection(false)
}

// Edit applies a local change and forwards it to the authority.
func (o *Orchestrator) Edit(content string) {
	o.apply(DocumentState{Content: content, Origin: OriginLocal})
}

func (o *Orchestrator) State() DocumentState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Content() string {
	return o.State().Content
}

func (o *Orchestrator) Connected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connected
}

// SessionID is empty until Start succeeds.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

func (o *Orchestrator) handleRemote(content string) {
	o.apply(DocumentState{Content: content, Origin: OriginRemote})
}

// handleSyncerConnection ignores an open reported after Stop.
func (o *Orchestrator) handleSyncerConnection(connected bool) {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	if connected && !started {
		return
	}
	o.handleConnection(connected)
}

func (o *Orchestrator) handleConnection(connected bool) {
	o.mu.Lock()
	changed := o.connected != connected
	o.connected = connected
	o.mu.Unlock()

	if !changed {
		return
	}
	o.logger.Info("connection changed", "connected", connected)
	if o.onConnection != nil {
		o.onConnection(connected)
	}
}

// apply installs update as the current state, last writer wins. Updates that
// leave the content unchanged are dropped.
func (o *Orchestrator) apply(update DocumentState) {
	o.mu.Lock()
	if update.Content == o.state.Content {
		o.mu.Unlock()
		return
	}
	o.state = update
	o.mu.Unlock()

	if o.onChange != nil {
		o.onChange(update)
	}
	if forwards(update) && o.syncer != nil {
		o.syncer.SendUpdate(update.Content)
	}
}

// forwards reports whether an update must be sent to the authority. Only
// local edits are; remote content never echoes back.
func forwards(update DocumentState) bool {
	return update.Origin == OriginLocal
}
