package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventSessionStart       EventKind = "session_start"
	EventSessionEnd         EventKind = "session_end"
	EventUserInput          EventKind = "user_input"
	EventAssistantTextStart EventKind = "assistant_text_start"
	EventAssistantTextDelta EventKind = "assistant_text_delta"
	EventReasoningDelta     EventKind = "assistant_reasoning_delta"
	EventAssistantTextEnd   EventKind = "assistant_text_end"
	EventToolProposal       EventKind = "tool_proposal"
	EventToolCallStart      EventKind = "tool_call_start"
	EventToolCallEnd        EventKind = "tool_call_end"
	EventTurnLimit          EventKind = "turn_limit"
	EventLoopDetection      EventKind = "loop_detection"
	EventInterrupted        EventKind = "interrupted"
	EventWarning            EventKind = "warning"
	EventError              EventKind = "error"
)

// SessionEvent is a typed event emitted by the session.
type SessionEvent struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Str returns a string field of Data, or "".
func (e SessionEvent) Str(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// EventSink renders events as they happen. Emit is called on the session's
// goroutine; a slow sink slows the session.
type EventSink interface {
	Emit(event SessionEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(SessionEvent)

func (f EventSinkFunc) Emit(event SessionEvent) { f(event) }

// EventEmitter stamps events with the session id and time and forwards
// them to a sink. Events emitted after Close are dropped.
type EventEmitter struct {
	sessionID string
	sink      EventSink
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates an emitter. A nil sink discards events.
func NewEventEmitter(sessionID string, sink EventSink) *EventEmitter {
	return &EventEmitter{sessionID: sessionID, sink: sink}
}

// Emit delivers an event to the sink.
func (e *EventEmitter) Emit(kind EventKind, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.sink == nil {
		return
	}
	e.sink.Emit(SessionEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

func (e *EventEmitter) setSessionID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = id
}

// Close stops delivery. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}
