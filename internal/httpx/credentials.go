package httpx

import "sync"

// CredentialStore supplies the session token attached to outgoing
// requests. Clear is called on authentication failure so the embedding
// app can force a re-login.
type CredentialStore interface {
	Token() string
	Clear()
}

// MemoryCredentials is a mutex-guarded in-memory CredentialStore.
type MemoryCredentials struct {
	token string
	mu    sync.RWMutex
}

// NewMemoryCredentials builds a MemoryCredentials holding token.
func NewMemoryCredentials(token string) *MemoryCredentials {
	return &MemoryCredentials{token: token}
}

func (c *MemoryCredentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *MemoryCredentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *MemoryCredentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}
