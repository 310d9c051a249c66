package unifiedllm

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ClientSpec identifies the client a caller needs.
type ClientSpec struct {
	Provider string
	APIKey   string
	Model    string
}

// key derives the cache key. The credential is hashed so it never sits in
// the map in clear text.
func (s ClientSpec) key() string {
	sum := sha256.Sum256([]byte(s.APIKey))
	return s.Provider + "|" + s.Model + "|" + hex.EncodeToString(sum[:8])
}

// ClientFactory builds a new Client for a spec.
type ClientFactory func(spec ClientSpec) (*Client, error)

// ClientCache hands out one Client per provider, model and credential.
// It is created by the composition root and passed to whoever needs a
// client.
type ClientCache struct {
	factory ClientFactory
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	group   singleflight.Group
}

// NewClientCache creates a cache that builds clients with factory. A nil
// factory uses GollmClientFactory.
func NewClientCache(factory ClientFactory, logger *slog.Logger) *ClientCache {
	if factory == nil {
		factory = GollmClientFactory(logger)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ClientCache{
		factory: factory,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Get returns the cached client for spec, building it on first use.
// Concurrent first calls for the same spec share one construction.
func (c *ClientCache) Get(spec ClientSpec) (*Client, error) {
	k := spec.key()

	c.mu.Lock()
	if cl, ok := c.clients[k]; ok {
		c.mu.Unlock()
		return cl, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		c.mu.Lock()
		if cl, ok := c.clients[k]; ok {
			c.mu.Unlock()
			return cl, nil
		}
		c.mu.Unlock()

		c.logger.Debug("building client", "provider", spec.Provider, "model", spec.Model)
		cl, err := c.factory(spec)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.clients[k] = cl
		c.mu.Unlock()
		return cl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// Len returns the number of cached clients.
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// Close closes and forgets every cached client.
func (c *ClientCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, cl := range c.clients {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.clients, k)
	}
	return firstErr
}

// GollmClientFactory builds clients backed by a GollmAdapter with the
// logging middleware installed.
func GollmClientFactory(logger *slog.Logger) ClientFactory {
	return func(spec ClientSpec) (*Client, error) {
		adapter, err := NewGollmAdapter(spec.Provider, spec.APIKey, WithModel(spec.Model))
		if err != nil {
			return nil, err
		}
		return NewClient(
			WithProvider(spec.Provider, adapter),
			WithStreamMiddleware(LoggingMiddleware(logger)),
		), nil
	}
}
