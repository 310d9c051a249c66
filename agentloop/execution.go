package agentloop

import (
	"context"

	"github.com/spektasoft/spekta-cli/session"
	"github.com/spektasoft/spekta-cli/toolcall"
	"github.com/spektasoft/spekta-cli/unifiedllm"
)

// Streamer opens a cancellable chunk stream for one assistant turn.
type Streamer interface {
	Stream(ctx context.Context, req unifiedllm.Request) (<-chan unifiedllm.StreamEvent, error)
}

// ClientSource hands out provider clients keyed by credential.
type ClientSource interface {
	Get(spec unifiedllm.ClientSpec) (*unifiedllm.Client, error)
}

// InputKind classifies what the user typed.
type InputKind int

const (
	InputNone InputKind = iota // nothing to send
	InputText
	InputExit
)

// UserInput is one read from the terminal.
type UserInput struct {
	Kind InputKind
	Text string
}

// InputReader reads one user turn. io.EOF ends the session like an exit
// command.
type InputReader interface {
	ReadUserMessage(ctx context.Context) (UserInput, error)
}

// Selector presents choices and returns what the user picked.
type Selector interface {
	// SelectMany returns the indexes of the chosen options, in any order.
	// An empty result means nothing was chosen.
	SelectMany(prompt string, options []string) ([]int, error)
	// SelectOne returns the index of the chosen option.
	SelectOne(prompt string, options []string, defaultIndex int) (int, error)
}

// Store persists the conversation log.
type Store interface {
	Save(id string, messages []unifiedllm.Message) error
	Load(id string) (*session.Session, error)
}

// ToolRunner executes one approved tool call and returns its result text.
type ToolRunner interface {
	Dispatch(call toolcall.Call) (string, error)
}

var (
	_ ClientSource = (*unifiedllm.ClientCache)(nil)
	_ Streamer     = (*unifiedllm.Client)(nil)
	_ Store        = (*session.Store)(nil)
	_ ToolRunner   = (*toolcall.Executor)(nil)
)
