// internal/session/context.go
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"pagegen-pipeline/internal/common/logger"

	"github.com/google/uuid"
)

// Context allocates and correlates the identifiers that tie a generation
// request together: the session id, per-call request ids, and idempotency
// keys for write-type calls. It is an explicit value threaded through every
// call; there is no package-level state.
type Context struct {
	store  Store
	logger logger.Logger

	mu       sync.Mutex
	fallback map[string]string // client key -> session id when the store errors
}

func NewContext(store Store, log logger.Logger) *Context {
	return &Context{
		store:    store,
		logger:   log.With(map[string]interface{}{"component": "session"}),
		fallback: make(map[string]string),
	}
}

// EnsureSessionID returns the existing session identifier for the client key
// or creates and persists a new one. It has no failure mode: if the store is
// unreachable the id is held in memory so the pipeline keeps working, just
// without cross-process stability.
func (c *Context) EnsureSessionID(ctx context.Context, clientKey string) string {
	if clientKey == "" {
		// Anonymous caller: fresh per-request session, nothing to persist.
		return uuid.New().String()
	}
	existing, err := c.store.Get(ctx, clientKey)
	if err == nil && existing != "" {
		return existing
	}
	if err != nil && err != ErrNotFound {
		c.logger.Warn("session store read failed, using in-memory session", map[string]interface{}{
			"clientKey": clientKey,
			"error":     err.Error(),
		})
		return c.fallbackSessionID(clientKey)
	}

	sessionID := uuid.New().String()
	if err := c.store.Set(ctx, clientKey, sessionID); err != nil {
		c.logger.Warn("session store write failed, using in-memory session", map[string]interface{}{
			"clientKey": clientKey,
			"error":     err.Error(),
		})
		return c.fallbackSessionID(clientKey)
	}

	c.logger.Info("session created", map[string]interface{}{
		"sessionId": sessionID,
	})
	return sessionID
}

func (c *Context) fallbackSessionID(clientKey string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.fallback[clientKey]; ok {
		return id
	}
	id := uuid.New().String()
	c.fallback[clientKey] = id
	return id
}

// NewRequestID generates a fresh identifier for a single outbound call.
// Unix millis plus a random suffix is unique enough for log correlation.
func (c *Context) NewRequestID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// IdempotencyKey derives a stable key for a write-type call from the session
// id, the stage, and a hash of the payload. A retried logical write therefore
// reuses its key and is never double-applied server-side.
func IdempotencyKey(sessionID, stage string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
