package blockchain

import (
	"fmt"
	"strings"
	"sync"
)

// ClientFactory keeps one EVM connection per RPC endpoint. The server and
// swapctl share a factory so the vault, registry and deployment paths reuse
// the same socket.
type ClientFactory struct {
	mu         sync.RWMutex
	evmClients map[string]*EVMClient
	dial       func(rpcURL string) (*EVMClient, error)
}

// NewClientFactory returns a factory that dials with NewEVMClient
func NewClientFactory() *ClientFactory {
	return &ClientFactory{
		evmClients: make(map[string]*EVMClient),
		dial:       NewEVMClient,
	}
}

func endpointKey(rpcURL string) string {
	return strings.TrimRight(strings.TrimSpace(rpcURL), "/")
}

// GetEVMClient returns the cached client for rpcURL, dialing on first use.
// Trailing slashes and surrounding whitespace do not create a second entry.
func (f *ClientFactory) GetEVMClient(rpcURL string) (*EVMClient, error) {
	key := endpointKey(rpcURL)

	f.mu.RLock()
	c, ok := f.evmClients[key]
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.evmClients[key]; ok {
		return c, nil
	}
	c, err := f.dial(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create EVM client: %w", err)
	}
	f.evmClients[key] = c
	return c, nil
}

// RegisterEVMClient pins a client for rpcURL, replacing any cached one
func (f *ClientFactory) RegisterEVMClient(rpcURL string, client *EVMClient) {
	f.mu.Lock()
	f.evmClients[endpointKey(rpcURL)] = client
	f.mu.Unlock()
}

// CloseAll closes and forgets every cached client
func (f *ClientFactory) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, c := range f.evmClients {
		c.Close()
		delete(f.evmClients, key)
	}
}
