// Package unifiedllm provides a provider-agnostic streaming client that wraps
// the gollm library (github.com/teilomillet/gollm).
//
// # Architecture
//
//   - ProviderAdapter: one backend, streaming only
//   - Client: routes requests to adapters and applies stream middleware
//   - ClientCache: builds one Client per provider, model and credential and
//     is owned by whoever composes the application
//
// # Quick Start
//
//	cache := unifiedllm.NewClientCache(nil, logger)
//	client, err := cache.Get(unifiedllm.ClientSpec{
//	    Provider: "openai",
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	    Model:    "gpt-5.2",
//	})
//
//	events, err := client.Stream(ctx, unifiedllm.Request{
//	    Model:    "gpt-5.2",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	acc := unifiedllm.NewStreamAccumulator()
//	for ev := range events {
//	    acc.Process(ev)
//	}
//	fmt.Println(acc.Content())
//
// Cancelling ctx ends the stream with a StreamError event whose Error is an
// *AbortError; IsAbort distinguishes it from transport failures.
//
// # Model Catalog
//
// A built-in catalog of known models helps select valid model identifiers:
//
//	info := unifiedllm.GetModelInfo("claude-opus-4-6")
//	models := unifiedllm.ListModels("anthropic")
//	def := unifiedllm.DefaultModel("openai")
package unifiedllm
