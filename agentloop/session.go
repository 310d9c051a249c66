package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spektasoft/spekta-cli/config"
	"github.com/spektasoft/spekta-cli/toolcall"
	"github.com/spektasoft/spekta-cli/unifiedllm"
)

// SessionState represents the current state of the REPL.
type SessionState string

const (
	StateIdle               SessionState = "idle"
	StateUserTurnCommitted  SessionState = "user_turn_committed"
	StateAssistantStreaming SessionState = "assistant_streaming"
	StateSucceeded          SessionState = "succeeded"
	StateInterrupted        SessionState = "interrupted"
	StateFailed             SessionState = "failed"
	StateToolProposal       SessionState = "tool_proposal"
	StateToolSelection      SessionState = "tool_selection"
	StateToolExecution      SessionState = "tool_execution"
	StateAutoTrigger        SessionState = "auto_trigger"
	StateClosed             SessionState = "closed"
)

// errExitRequested unwinds the turn loop when the user picks Exit after a
// failed request.
var errExitRequested = errors.New("exit requested")

// SessionConfig holds the knobs of the turn loop.
type SessionConfig struct {
	MaxAutoRounds       int      // consecutive auto-triggered turns; 0 = unlimited
	LoopDetectionWindow int      // identical tool batches that stop auto-triggering; 0 = off
	Temperature         *float64 // nil = provider default
	MaxTokens           *int     // nil = provider default
	ReasoningEffort     string
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAutoRounds:       25,
		LoopDetectionWindow: 3,
	}
}

// SessionConfigFrom derives loop settings from user configuration.
func SessionConfigFrom(cfg *config.Config) SessionConfig {
	sc := DefaultSessionConfig()
	sc.MaxAutoRounds = cfg.MaxAutoRounds
	temp := cfg.Temperature
	sc.Temperature = &temp
	maxTokens := cfg.MaxTokens
	sc.MaxTokens = &maxTokens
	sc.ReasoningEffort = cfg.ReasoningEffort
	return sc
}

// Options wires a Session to its collaborators.
type Options struct {
	Config   *config.Config
	Clients  ClientSource
	Store    Store
	Input    InputReader
	Selector Selector
	Tools    ToolRunner
	Sink     EventSink
	Logger   *slog.Logger
	WorkDir  string
	ResumeID string           // continue a saved session instead of starting one
	Exit     func(code int)   // called after an idle interrupt; defaults to os.Exit
	Now      func() time.Time // defaults to time.Now
}

// Session drives one interactive conversation: user turns, streamed
// assistant turns, tool proposals and auto-triggered follow-ups.
type Session struct {
	id       string
	cfg      *config.Config
	config   SessionConfig
	profile  Profile
	workDir  string
	resumeID string

	clients  ClientSource
	streamer Streamer
	store    Store
	input    InputReader
	selector Selector
	tools    ToolRunner
	emitter  *EventEmitter
	logger   *slog.Logger
	exit     func(code int)
	now      func() time.Time

	// Guarded by mu: the interrupt handler runs on the signal goroutine.
	mu          sync.Mutex
	state       SessionState
	messages    []unifiedllm.Message
	pending     string
	cancel      context.CancelFunc // non-nil while a stream is active
	interrupted bool
	exitFlag    bool
	closed      bool

	autoRounds   int
	batchHistory []string
}

// NewSession creates an uninitialized session. Call Initialize before
// Start.
func NewSession(opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	return &Session{
		cfg:      cfg,
		config:   SessionConfigFrom(cfg),
		workDir:  workDir,
		resumeID: opts.ResumeID,
		clients:  opts.Clients,
		store:    opts.Store,
		input:    opts.Input,
		selector: opts.Selector,
		tools:    opts.Tools,
		emitter:  NewEventEmitter("", opts.Sink),
		logger:   logger,
		exit:     exit,
		now:      now,
		state:    StateIdle,
	}
}

// SetConfig overrides the loop settings.
func (s *Session) SetConfig(sc SessionConfig) {
	s.config = sc
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Profile returns the provider and model in use.
func (s *Session) Profile() Profile { return s.profile }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the conversation log.
func (s *Session) Messages() []unifiedllm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]unifiedllm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pending returns tool-result text not yet sent to the model.
func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// RequestExit asks the loop to stop at the next turn boundary.
func (s *Session) RequestExit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitFlag = true
}

func (s *Session) exitRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitFlag
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Initialize checks the credential, settles the model, obtains a client,
// and either resumes a saved session or starts a new one whose system
// prompt is persisted immediately.
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.cfg.RequireCredential(); err != nil {
		return err
	}
	if s.clients == nil || s.store == nil || s.input == nil || s.selector == nil || s.tools == nil {
		return &unifiedllm.ConfigurationError{SDKError: unifiedllm.SDKError{Message: "session is missing a collaborator"}}
	}

	model := s.cfg.Model
	if model == "" {
		picked, err := s.selectModel(s.cfg.Provider)
		if err != nil {
			return err
		}
		model = picked
	}
	s.profile = NewProfile(s.cfg.Provider, model)

	client, err := s.clients.Get(unifiedllm.ClientSpec{
		Provider: s.profile.Provider,
		APIKey:   s.cfg.APIKey,
		Model:    s.profile.Model,
	})
	if err != nil {
		return err
	}
	s.streamer = client

	if s.resumeID != "" {
		return s.resume(s.resumeID)
	}

	template, err := s.cfg.SystemPrompt(DefaultPromptTemplate)
	if err != nil {
		return err
	}

	s.id = uuid.New().String()
	s.emitter.setSessionID(s.id)

	s.mu.Lock()
	s.messages = []unifiedllm.Message{
		unifiedllm.SystemMessage(BuildSystemPrompt(template, s.profile, s.workDir, s.now())),
	}
	err = s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("session started", "id", s.id, "provider", s.profile.Provider, "model", s.profile.Model)
	s.emitter.Emit(EventSessionStart, map[string]interface{}{
		"provider": s.profile.Provider,
		"model":    s.profile.Model,
		"resumed":  false,
	})
	return nil
}

func (s *Session) resume(id string) error {
	saved, err := s.store.Load(id)
	if err != nil {
		return err
	}
	if saved == nil {
		return fmt.Errorf("session %s not found", id)
	}

	s.id = saved.ID
	s.emitter.setSessionID(s.id)
	s.mu.Lock()
	s.messages = saved.Messages
	s.mu.Unlock()

	s.logger.Info("session resumed", "id", s.id, "messages", len(saved.Messages))
	s.emitter.Emit(EventSessionStart, map[string]interface{}{
		"provider": s.profile.Provider,
		"model":    s.profile.Model,
		"resumed":  true,
		"messages": len(saved.Messages),
	})
	return nil
}

func (s *Session) selectModel(provider string) (string, error) {
	models := unifiedllm.ListModels(provider)
	if len(models) == 0 {
		return "", &unifiedllm.ConfigurationError{SDKError: unifiedllm.SDKError{
			Message: fmt.Sprintf("no model configured and none known for provider %s", provider),
		}}
	}
	options := make([]string, len(models))
	for i, m := range models {
		options[i] = fmt.Sprintf("%s (%s)", m.ID, m.DisplayName)
	}
	idx, err := s.selector.SelectOne("Select a model", options, 0)
	if err != nil {
		return "", fmt.Errorf("select model: %w", err)
	}
	if idx < 0 || idx >= len(models) {
		return "", fmt.Errorf("select model: index %d out of range", idx)
	}
	return models[idx].ID, nil
}

// Start runs turns until the user exits or RequestExit is called. The
// SIGINT listener lives exactly as long as Start.
func (s *Session) Start(ctx context.Context) error {
	stop := s.listenForInterrupts()
	defer stop()

	for !s.exitRequested() && ctx.Err() == nil {
		committed, exit, err := s.handleUserTurn(ctx)
		if err != nil {
			return err
		}
		if exit {
			break
		}
		if !committed {
			continue
		}
		if err := s.runAssistantCycle(ctx); err != nil {
			if errors.Is(err, errExitRequested) {
				break
			}
			return err
		}
	}

	return s.finish()
}

// finish flushes the pending buffer as a final user message and persists.
// Later calls are no-ops.
func (s *Session) finish() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.pending != "" {
		s.messages = append(s.messages, unifiedllm.UserMessage(s.pending))
		s.pending = ""
	}
	err := s.saveLocked()
	s.closed = true
	s.exitFlag = true
	s.state = StateClosed
	s.mu.Unlock()

	s.emitter.Emit(EventSessionEnd, map[string]interface{}{"state": string(StateClosed)})
	s.emitter.Close()
	return err
}

// handleUserTurn reads one input and commits it, merged after any pending
// tool results, as a user message.
func (s *Session) handleUserTurn(ctx context.Context) (committed, exit bool, err error) {
	s.setState(StateIdle)

	in, err := s.input.ReadUserMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, true, nil
		}
		return false, false, fmt.Errorf("read input: %w", err)
	}
	switch in.Kind {
	case InputExit:
		return false, true, nil
	case InputNone:
		return false, false, nil
	}
	if strings.TrimSpace(in.Text) == "" {
		return false, false, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, true, nil
	}
	content := joinSections(s.pending, in.Text)
	s.pending = ""
	s.messages = append(s.messages, unifiedllm.UserMessage(content))
	s.state = StateUserTurnCommitted
	err = s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return false, false, err
	}

	s.emitter.Emit(EventUserInput, map[string]interface{}{"content": content})
	return true, false, nil
}

// runAssistantCycle streams assistant turns, offering any proposed tool
// calls after each, until a turn proposes nothing that runs or an
// auto-trigger guard trips.
func (s *Session) runAssistantCycle(ctx context.Context) error {
	s.autoRounds = 0
	s.batchHistory = nil

	for {
		msg, err := s.handleAssistantTurn(ctx)
		if err != nil {
			return err
		}
		s.checkContextUsage()
		if ctx.Err() != nil {
			return nil
		}

		calls := toolcall.Parse(stripInterruptMarker(msg.Content), s.logger)
		if len(calls) == 0 {
			return nil
		}

		executed := s.handleTools(calls)
		if len(executed) == 0 || s.exitRequested() {
			return nil
		}

		if s.config.MaxAutoRounds > 0 && s.autoRounds >= s.config.MaxAutoRounds {
			s.emitter.Emit(EventTurnLimit, map[string]interface{}{
				"rounds":  s.autoRounds,
				"message": fmt.Sprintf("Stopped after %d automatic rounds. Tool results will be sent with your next message.", s.autoRounds),
			})
			return nil
		}

		s.batchHistory = append(s.batchHistory, batchSignature(executed))
		if w := s.config.LoopDetectionWindow; w > 0 && DetectLoop(s.batchHistory, w) {
			s.emitter.Emit(EventLoopDetection, map[string]interface{}{
				"message": fmt.Sprintf("The same actions ran %d times in a row; automatic follow-up stopped.", w),
			})
			return nil
		}

		s.autoRounds++
		s.setState(StateAutoTrigger)
		if err := s.commitPending(); err != nil {
			return err
		}
	}
}

// commitPending sends the pending buffer as the next user message.
func (s *Session) commitPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return nil
	}
	s.messages = append(s.messages, unifiedllm.UserMessage(s.pending))
	s.pending = ""
	s.state = StateUserTurnCommitted
	return s.saveLocked()
}

// handleAssistantTurn streams one reply. Success and interruption both
// append exactly one assistant message; a failure appends nothing and asks
// whether to retry the same request.
func (s *Session) handleAssistantTurn(ctx context.Context) (unifiedllm.Message, error) {
	for {
		if s.exitRequested() {
			return unifiedllm.Message{}, errExitRequested
		}
		streamCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.interrupted = false
		s.state = StateAssistantStreaming
		s.mu.Unlock()

		acc := unifiedllm.NewStreamAccumulator()
		s.emitter.Emit(EventAssistantTextStart, nil)
		err := s.consumeStream(streamCtx, acc)

		s.mu.Lock()
		interrupted := s.interrupted || (err != nil && (unifiedllm.IsAbort(err) || ctx.Err() != nil))
		s.cancel = nil
		s.interrupted = false
		s.mu.Unlock()
		cancel()

		if err == nil || interrupted {
			msg := newAssistantTurn(acc, interrupted)
			state := StateSucceeded
			if interrupted {
				state = StateInterrupted
			}

			s.mu.Lock()
			s.messages = append(s.messages, msg)
			s.state = state
			perr := s.saveLocked()
			s.mu.Unlock()

			s.emitter.Emit(EventAssistantTextEnd, map[string]interface{}{
				"interrupted": interrupted,
				"finish":      acc.FinishReason().Reason,
			})
			return msg, perr
		}

		s.setState(StateFailed)
		acc.Reset()
		s.logger.Error("assistant turn failed", "error", err, "retryable", unifiedllm.IsRetryable(err))
		s.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
		if !s.promptRetry(err) || s.exitRequested() {
			return unifiedllm.Message{}, errExitRequested
		}
	}
}

// consumeStream feeds chunks into acc until the stream ends, fails, or ctx
// is cancelled. The remainder of a cancelled stream is drained in the
// background so the producer can exit.
func (s *Session) consumeStream(ctx context.Context, acc *unifiedllm.StreamAccumulator) error {
	ch, err := s.streamer.Stream(ctx, s.buildRequest())
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			go drain(ch)
			return &unifiedllm.AbortError{SDKError: unifiedllm.SDKError{Message: "stream cancelled", Cause: ctx.Err()}}
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			switch event.Type {
			case unifiedllm.TextDelta, unifiedllm.ReasoningDelta:
				acc.Process(event)
				if event.ReasoningDelta != "" {
					s.emitter.Emit(EventReasoningDelta, map[string]interface{}{"delta": event.ReasoningDelta})
				}
				if event.Delta != "" {
					s.emitter.Emit(EventAssistantTextDelta, map[string]interface{}{"delta": event.Delta})
				}
			case unifiedllm.StreamFinish:
				acc.Process(event)
			case unifiedllm.StreamError:
				go drain(ch)
				if event.Error != nil {
					return event.Error
				}
				return &unifiedllm.StreamErrorType{SDKError: unifiedllm.SDKError{Message: "stream failed"}}
			}
		}
	}
}

func drain(ch <-chan unifiedllm.StreamEvent) {
	for range ch {
	}
}

func (s *Session) buildRequest() unifiedllm.Request {
	s.mu.Lock()
	messages := make([]unifiedllm.Message, len(s.messages))
	copy(messages, s.messages)
	s.mu.Unlock()

	return unifiedllm.Request{
		Model:           s.profile.Model,
		Provider:        s.profile.Provider,
		Messages:        messages,
		Temperature:     s.config.Temperature,
		MaxTokens:       s.profile.outputLimit(s.config.MaxTokens),
		ReasoningEffort: s.config.ReasoningEffort,
	}
}

// promptRetry asks Retry or Exit. The default follows whether the error is
// worth retrying.
func (s *Session) promptRetry(err error) bool {
	def := 1
	if unifiedllm.IsRetryable(err) {
		def = 0
	}
	idx, serr := s.selector.SelectOne(fmt.Sprintf("Request failed: %v", err), []string{"Retry", "Exit"}, def)
	if serr != nil {
		s.logger.Warn("retry prompt failed", "error", serr)
		return false
	}
	return idx == 0
}

// handleTools presents every proposed call, runs the approved ones in
// order, and appends one result per call to the pending buffer. It returns
// the calls that ran, successful or not.
func (s *Session) handleTools(calls []toolcall.Call) []toolcall.Call {
	s.setState(StateToolProposal)
	summaries := make([]string, len(calls))
	for i, c := range calls {
		summaries[i] = c.Summary()
	}
	s.emitter.Emit(EventToolProposal, map[string]interface{}{"calls": summaries})

	s.setState(StateToolSelection)
	picked, err := s.selector.SelectMany("Select actions to run", summaries)
	if err != nil {
		s.logger.Warn("tool selection failed; denying all", "error", err)
		picked = nil
	}
	approved := make(map[int]bool, len(picked))
	for _, i := range picked {
		approved[i] = true
	}

	s.setState(StateToolExecution)
	results := make([]string, 0, len(calls))
	var executed []toolcall.Call
	for i, c := range calls {
		if !approved[i] {
			results = append(results, formatToolResult(c, resultDenied, DeniedText))
			continue
		}
		if s.exitRequested() {
			results = append(results, formatToolResult(c, resultSkipped, SkippedText))
			continue
		}

		s.emitter.Emit(EventToolCallStart, map[string]interface{}{"summary": summaries[i]})
		status := resultOK
		out, err := s.tools.Dispatch(c)
		if err != nil {
			status = resultError
			out = "Error: " + err.Error()
			s.logger.Warn("tool call failed", "call", summaries[i], "error", err)
		} else {
			out = TruncateToolOutput(out, c.Kind)
		}
		s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
			"summary": summaries[i],
			"status":  status,
			"output":  out,
		})
		results = append(results, formatToolResult(c, status, out))
		executed = append(executed, c)
	}

	s.mu.Lock()
	s.pending = joinSections(s.pending, strings.Join(results, "\n\n"))
	s.mu.Unlock()
	return executed
}

// checkContextUsage warns when the log nears the model's context window.
func (s *Session) checkContextUsage() {
	usage := ContextUsage{
		Tokens: EstimateConversationTokens(s.Messages()),
		Window: s.profile.ContextWindow,
	}
	if usage.OverThreshold() {
		s.emitter.Emit(EventWarning, map[string]interface{}{
			"message": fmt.Sprintf("Context usage at ~%d%% of context window", usage.Percent()),
		})
	}
}

// HandleInterrupt reacts to Ctrl+C. During a stream it cancels the stream
// and the turn ends as Interrupted. While waiting for input it persists
// pending tool results and exits. In any other state a tool may be writing
// a file, so it only requests exit; Start flushes and saves once the
// current step returns.
func (s *Session) HandleInterrupt() {
	s.mu.Lock()
	if cancel := s.cancel; cancel != nil {
		s.interrupted = true
		s.mu.Unlock()
		cancel()
		s.emitter.Emit(EventInterrupted, nil)
		return
	}
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.state != StateIdle {
		s.exitFlag = true
		state := s.state
		s.mu.Unlock()
		s.logger.Info("exit requested during a step", "state", string(state))
		s.emitter.Emit(EventInterrupted, map[string]interface{}{"deferred": true})
		s.emitter.Emit(EventWarning, map[string]interface{}{
			"message": "Exit requested; saving once the current step finishes.",
		})
		return
	}
	s.mu.Unlock()

	code := 0
	if err := s.finish(); err != nil {
		s.logger.Error("final save failed", "error", err)
		code = 1
	}
	s.exit(code)
}

func (s *Session) listenForInterrupts() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				s.HandleInterrupt()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// saveLocked persists the log. Callers hold mu. Nothing is written once the
// session is closed.
func (s *Session) saveLocked() error {
	if s.closed {
		return nil
	}
	return s.store.Save(s.id, s.messages)
}
