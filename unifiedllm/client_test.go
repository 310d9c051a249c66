package unifiedllm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// mockAdapter is a test double for ProviderAdapter.
type mockAdapter struct {
	name   string
	err    error
	events []StreamEvent
	calls  int
	last   Request
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan StreamEvent, len(m.events))
	for _, e := range m.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func newMockAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name: name,
		events: []StreamEvent{
			{Type: StreamStart},
			{Type: TextDelta, Delta: text},
			{Type: StreamFinish, FinishReason: &FinishReason{Reason: "stop"}},
		},
	}
}

func drain(t *testing.T, ch <-chan StreamEvent) *StreamAccumulator {
	t.Helper()
	acc := NewStreamAccumulator()
	for ev := range ch {
		acc.Process(ev)
	}
	return acc
}

func TestClientStream(t *testing.T) {
	mock := &mockAdapter{
		name: "test",
		events: []StreamEvent{
			{Type: StreamStart},
			{Type: TextDelta, Delta: "Hello"},
			{Type: TextDelta, Delta: " world"},
			{Type: StreamFinish, FinishReason: &FinishReason{Reason: "stop"}},
		},
	}

	client := NewClient(WithProvider("test", mock))
	ch, err := client.Stream(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var events []StreamEvent
	for event := range ch {
		events = append(events, event)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Type != StreamStart {
		t.Errorf("expected StreamStart, got %q", events[0].Type)
	}
	if events[1].Delta != "Hello" {
		t.Errorf("expected delta %q, got %q", "Hello", events[1].Delta)
	}
	if mock.last.Provider != "test" {
		t.Errorf("expected provider to be filled in, got %q", mock.last.Provider)
	}
}

func TestClientProviderRouting(t *testing.T) {
	openai := newMockAdapter("openai", "from openai")
	anthropic := newMockAdapter("anthropic", "from anthropic")

	client := NewClient(
		WithProvider("openai", openai),
		WithProvider("anthropic", anthropic),
		WithDefaultProvider("openai"),
	)

	ch, err := client.Stream(context.Background(), Request{Model: "m", Provider: "anthropic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, ch).Content(); got != "from anthropic" {
		t.Errorf("expected anthropic response, got %q", got)
	}

	ch, err = client.Stream(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, ch).Content(); got != "from openai" {
		t.Errorf("expected default provider response, got %q", got)
	}
}

func TestClientInfersProviderFromCatalog(t *testing.T) {
	anthropic := newMockAdapter("anthropic", "ok")
	client := NewClient(
		WithProvider("anthropic", anthropic),
		WithProvider("openai", newMockAdapter("openai", "wrong")),
	)
	ch, err := client.Stream(context.Background(), Request{Model: "claude-opus-4-6"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, ch)
	if anthropic.calls != 1 {
		t.Errorf("expected anthropic adapter to be used, calls = %d", anthropic.calls)
	}
}

func TestClientNoProvider(t *testing.T) {
	client := NewClient()
	_, err := client.Stream(context.Background(), Request{Model: "unknown-model"})
	if err == nil {
		t.Fatal("expected error for no provider")
	}
	if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestClientStreamMiddlewareOrder(t *testing.T) {
	mock := newMockAdapter("test", "response")
	var order []int

	mw := func(n int) StreamMiddleware {
		return func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error) {
			order = append(order, n)
			ch, err := next(ctx, req)
			order = append(order, -n)
			return ch, err
		}
	}

	client := NewClient(
		WithProvider("test", mock),
		WithStreamMiddleware(mw(1), mw(2)),
	)

	ch, err := client.Stream(context.Background(), Request{Model: "test-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, ch)

	// Onion pattern: first registered runs first for request, reverse for response.
	expected := []int{1, 2, -2, -1}
	if len(order) != len(expected) {
		t.Fatalf("expected %d middleware calls, got %d", len(expected), len(order))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("position %d: expected %d, got %d", i, v, order[i])
		}
	}
}

func TestLoggingMiddlewareForwardsEvents(t *testing.T) {
	mock := newMockAdapter("test", "passthrough")
	client := NewClient(
		WithProvider("test", mock),
		WithStreamMiddleware(LoggingMiddleware(nil)),
	)

	ch, err := client.Stream(context.Background(), Request{Model: "test-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, ch).Content(); got != "passthrough" {
		t.Errorf("expected content to pass through middleware, got %q", got)
	}
}

func TestLoggingMiddlewarePropagatesOpenError(t *testing.T) {
	want := &AuthenticationError{}
	client := NewClient(
		WithProvider("test", &mockAdapter{name: "test", err: want}),
		WithStreamMiddleware(LoggingMiddleware(nil)),
	)
	_, err := client.Stream(context.Background(), Request{Model: "m"})
	if !errors.Is(err, want) {
		t.Errorf("expected open error to propagate, got %v", err)
	}
}

func TestClientRegisterProvider(t *testing.T) {
	client := NewClient()
	client.RegisterProvider("dynamic", newMockAdapter("dynamic", "dynamic response"))

	ch, err := client.Stream(context.Background(), Request{Model: "test-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, ch).Content(); got != "dynamic response" {
		t.Errorf("got %q", got)
	}
}

func TestClientCacheReusesClients(t *testing.T) {
	var built atomic.Int32
	cache := NewClientCache(func(spec ClientSpec) (*Client, error) {
		built.Add(1)
		return NewClient(WithProvider(spec.Provider, newMockAdapter(spec.Provider, "hi"))), nil
	}, nil)

	spec := ClientSpec{Provider: "openai", APIKey: "k1", Model: "gpt-5.2"}

	var wg sync.WaitGroup
	clients := make([]*Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := cache.Get(spec)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	if built.Load() != 1 {
		t.Errorf("expected exactly one construction, got %d", built.Load())
	}
	for i, c := range clients {
		if c != clients[0] {
			t.Errorf("client %d differs from first", i)
		}
	}

	other, err := cache.Get(ClientSpec{Provider: "openai", APIKey: "k2", Model: "gpt-5.2"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other == clients[0] {
		t.Error("different credentials must yield different clients")
	}
	if cache.Len() != 2 {
		t.Errorf("expected 2 cached clients, got %d", cache.Len())
	}

	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after Close, got %d", cache.Len())
	}
}

func TestClientCacheDoesNotStoreFailures(t *testing.T) {
	calls := 0
	cache := NewClientCache(func(spec ClientSpec) (*Client, error) {
		calls++
		if calls == 1 {
			return nil, &ConfigurationError{SDKError: SDKError{Message: "boom"}}
		}
		return NewClient(), nil
	}, nil)

	spec := ClientSpec{Provider: "openai", APIKey: "k"}
	if _, err := cache.Get(spec); err == nil {
		t.Fatal("expected first Get to fail")
	}
	if _, err := cache.Get(spec); err != nil {
		t.Fatalf("expected second Get to succeed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected factory to run twice, got %d", calls)
	}
}

func TestClientSpecKeyHidesCredential(t *testing.T) {
	spec := ClientSpec{Provider: "openai", APIKey: "sk-secret", Model: "m"}
	if k := spec.key(); k == "" || strings.Contains(k, "sk-secret") {
		t.Errorf("key leaks credential: %q", k)
	}
}
