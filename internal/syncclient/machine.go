package syncclient

import (
	realtimeTypes "github.com/nikhildhole/mermaid-visualizer/pkg/realtime"
)

// Status is the connection state of a Client.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	eventConnectAttempted eventKind = iota
	eventOpened
	eventMessageReceived
	eventClosed
	eventDisconnectRequested
	eventReconnectDue
)

// event is one input to the machine. attempt identifies the connection
// attempt a socket event belongs to; timer identifies the reconnect timer
// that fired.
type event struct {
	kind    eventKind
	attempt uint64
	timer   uint64
	msg     realtimeTypes.ServerEnvelope
}

type actionKind int

const (
	actionDial actionKind = iota
	actionAdopt
	actionAbandon
	actionCloseActive
	actionSendGet
	actionNotifyConnection
	actionDeliverContent
	actionAcknowledge
	actionScheduleReconnect
	actionCancelReconnect
)

func (k actionKind) String() string {
	switch k {
	case actionDial:
		return "dial"
	case actionAdopt:
		return "adopt"
	case actionAbandon:
		return "abandon"
	case actionCloseActive:
		return "close_active"
	case actionSendGet:
		return "send_get"
	case actionNotifyConnection:
		return "notify_connection"
	case actionDeliverContent:
		return "deliver_content"
	case actionAcknowledge:
		return "acknowledge"
	case actionScheduleReconnect:
		return "schedule_reconnect"
	case actionCancelReconnect:
		return "cancel_reconnect"
	default:
		return "unknown"
	}
}

type action struct {
	kind      actionKind
	attempt   uint64
	timer     uint64
	connected bool
	text      string
}

// machine holds the connection lifecycle. It performs no I/O: handle maps
// an input to the side effects the Client must carry out, in order.
type machine struct {
	status       Status
	attempt      uint64
	timer        uint64
	timerPending bool
	stopped      bool
}

func (m *machine) handle(ev event) []action {
	switch ev.kind {
	case eventConnectAttempted:
		m.stopped = false
		if m.status != StatusDisconnected {
			return nil
		}
		var acts []action
		if m.timerPending {
			m.timerPending = false
			acts = append(acts, action{kind: actionCancelReconnect})
		}
		return append(acts, m.dial())

	case eventOpened:
		if ev.attempt != m.attempt || m.status != StatusConnecting {
			return []action{{kind: actionAbandon, attempt: ev.attempt}}
		}
		m.status = StatusConnected
		return []action{
			{kind: actionAdopt, attempt: ev.attempt},
			{kind: actionNotifyConnection, connected: true},
			{kind: actionSendGet},
		}

	case eventMessageReceived:
		if ev.attempt != m.attempt || m.status != StatusConnected {
			return nil
		}
		if ev.msg.CarriesContent() {
			return []action{{kind: actionDeliverContent, text: *ev.msg.Content}}
		}
		if ev.msg.Type == realtimeTypes.ServerMessageTypeAcknowledged {
			return []action{{kind: actionAcknowledge, text: ev.msg.Message}}
		}
		return nil

	case eventClosed:
		if ev.attempt != m.attempt || m.status == StatusDisconnected {
			return nil
		}
		m.status = StatusDisconnected
		acts := []action{
			{kind: actionCloseActive},
			{kind: actionNotifyConnection, connected: false},
		}
		if m.stopped {
			return acts
		}
		m.timer++
		m.timerPending = true
		return append(acts, action{kind: actionScheduleReconnect, timer: m.timer})

	case eventDisconnectRequested:
		m.stopped = true
		var acts []action
		if m.timerPending {
			m.timerPending = false
			acts = append(acts, action{kind: actionCancelReconnect})
		}
		if m.status == StatusDisconnected {
			return acts
		}
		wasConnected := m.status == StatusConnected
		m.status = StatusDisconnected
		// Anything still in flight for the old attempt is now stale.
		m.attempt++
		acts = append(acts, action{kind: actionCloseActive})
		if wasConnected {
			acts = append(acts, action{kind: actionNotifyConnection, connected: false})
		}
		return acts

	case eventReconnectDue:
		if !m.timerPending || ev.timer != m.timer || m.stopped {
			return nil
		}
		m.timerPending = false
		return []action{m.dial()}
	}
	return nil
}

func (m *machine) dial() action {
	m.attempt++
	m.status = StatusConnecting
	return action{kind: actionDial, attempt: m.attempt}
}
