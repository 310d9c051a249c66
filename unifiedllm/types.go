package unifiedllm

import "strings"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is the fundamental unit of conversation. The same shape is
// persisted in session files.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message with optional reasoning.
func AssistantMessage(text, reasoning string) Message {
	return Message{Role: RoleAssistant, Content: text, Reasoning: reasoning}
}

// FinishReason describes why generation stopped.
type FinishReason struct {
	Reason string `json:"reason"` // "stop", "length", "content_filter", "error", "other"
	Raw    string `json:"raw,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Request is the input to Stream.
type Request struct {
	Model           string                 `json:"model"`
	Messages        []Message              `json:"messages"`
	Provider        string                 `json:"provider,omitempty"`
	Temperature     *float64               `json:"temperature,omitempty"`
	MaxTokens       *int                   `json:"max_tokens,omitempty"`
	ReasoningEffort string                 `json:"reasoning_effort,omitempty"`
	ProviderOptions map[string]interface{} `json:"provider_options,omitempty"`
}

// StreamEventType identifies the kind of stream event.
type StreamEventType string

const (
	StreamStart    StreamEventType = "stream_start"
	TextDelta      StreamEventType = "text_delta"
	ReasoningDelta StreamEventType = "reasoning_delta"
	StreamFinish   StreamEventType = "finish"
	StreamError    StreamEventType = "error"
)

// StreamEvent is a single chunk from a streaming response. A chunk carries
// incremental content, incremental reasoning, or both.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	Delta          string          `json:"delta,omitempty"`
	ReasoningDelta string          `json:"reasoning_delta,omitempty"`
	FinishReason   *FinishReason   `json:"finish_reason,omitempty"`
	Usage          *Usage          `json:"usage,omitempty"`
	Error          error           `json:"-"`
}

// StreamAccumulator collects stream events into content and reasoning text.
type StreamAccumulator struct {
	content      strings.Builder
	reasoning    strings.Builder
	finishReason *FinishReason
	usage        *Usage
}

// NewStreamAccumulator creates a new StreamAccumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Process ingests a single stream event.
func (sa *StreamAccumulator) Process(event StreamEvent) {
	switch event.Type {
	case TextDelta, ReasoningDelta:
		sa.content.WriteString(event.Delta)
		sa.reasoning.WriteString(event.ReasoningDelta)
	case StreamFinish:
		sa.finishReason = event.FinishReason
		sa.usage = event.Usage
	}
}

// Reset discards everything accumulated so far.
func (sa *StreamAccumulator) Reset() {
	sa.content.Reset()
	sa.reasoning.Reset()
	sa.finishReason = nil
	sa.usage = nil
}

// Content returns the accumulated assistant text.
func (sa *StreamAccumulator) Content() string {
	return sa.content.String()
}

// Reasoning returns the accumulated reasoning text.
func (sa *StreamAccumulator) Reasoning() string {
	return sa.reasoning.String()
}

// FinishReason returns the reported finish reason, defaulting to "stop".
func (sa *StreamAccumulator) FinishReason() FinishReason {
	if sa.finishReason != nil {
		return *sa.finishReason
	}
	return FinishReason{Reason: "stop"}
}

// Usage returns the reported usage, or the zero value.
func (sa *StreamAccumulator) Usage() Usage {
	if sa.usage != nil {
		return *sa.usage
	}
	return Usage{}
}
