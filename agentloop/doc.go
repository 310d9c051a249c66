// Package agentloop implements the interactive turn loop of spekta.
//
// A Session alternates user turns and streamed assistant turns. Tool tags
// in an assistant reply (see package toolcall) are offered to the user;
// approved calls run, every call's result is buffered, and when at least
// one call ran the buffer is sent back automatically as the next user
// message. The whole log is persisted after every change.
//
// # Collaborators
//
// The session only talks to interfaces:
//
//   - ClientSource / Streamer: provider clients, keyed by credential.
//   - InputReader: the user's typed turns.
//   - Selector: multi-choice and single-choice prompts.
//   - ToolRunner: executes an approved tool call.
//   - Store: saves and loads the conversation log.
//   - EventSink: renders deltas, proposals, warnings and errors.
//
// # Interrupts
//
// Ctrl+C while a reply streams cancels that stream; the partial reply is
// kept and marked. Ctrl+C at any other time saves pending tool results and
// exits.
//
// # Quick Start
//
//	sess := agentloop.NewSession(agentloop.Options{
//	    Config:   cfg,
//	    Clients:  unifiedllm.NewClientCache(nil, logger),
//	    Store:    session.NewStore(cfg.SessionDir, logger),
//	    Input:    reader,
//	    Selector: selector,
//	    Tools:    toolcall.NewExecutor(workDir),
//	    Sink:     printer,
//	})
//	if err := sess.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := sess.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package agentloop
