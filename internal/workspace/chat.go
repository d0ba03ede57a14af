package workspace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/gateway"
	"github.com/leadproton/server/internal/llm"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/metrics"
)

// Canned assistant turns.
const (
	ChatGreeting    = "Hello! I'm your AI assistant. How can I help you with your lead generation today?"
	ChatUnavailable = "Sorry, I'm having trouble connecting right now."
	ChatErrorReply  = "Oops! Something went wrong. Please try again."
)

// Session limits. Idle sessions are swept when a new one is opened; beyond
// MaxChatSessions the least recently used session is evicted.
const (
	ChatIdleTTL     = 30 * time.Minute
	MaxChatSessions = 1000
)

type chatSession struct {
	mu      sync.Mutex
	history []model.ChatMessage
	// lastUsed is the unix time in nanoseconds of the last access.
	lastUsed atomic.Int64
}

func (s *chatSession) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

// Chats keeps assistant conversations in memory. Sessions are lost on
// restart.
type Chats struct {
	gateway *gateway.Gateway
	logger  *logger.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*chatSession
}

// NewChats creates an empty session registry.
func NewChats(gw *gateway.Gateway, log *logger.Logger) *Chats {
	return &Chats{
		gateway:  gw,
		logger:   logger.OrGlobal(log).Named("chat"),
		now:      time.Now,
		sessions: make(map[string]*chatSession),
	}
}

// Open starts a session seeded with the greeting, followed by a connection
// notice when no AI provider is configured.
func (c *Chats) Open() (string, []model.ChatMessage) {
	s := &chatSession{history: []model.ChatMessage{{Role: model.ChatRoleModel, Text: ChatGreeting}}}
	if c.gateway.Provider() == gateway.ProviderHeuristic {
		s.history = append(s.history, model.ChatMessage{Role: model.ChatRoleModel, Text: ChatUnavailable})
	}

	now := c.now()
	s.touch(now)

	id := uuid.NewString()
	c.mu.Lock()
	evicted := c.evictLocked(now)
	c.sessions[id] = s
	c.mu.Unlock()
	metrics.ChatSessionsActive.Add(float64(1 - evicted))
	if evicted > 0 {
		c.logger.Debug("chat sessions evicted", zap.Int("count", evicted))
	}

	return id, clone(s.history)
}

// History returns a copy of a session's turns.
func (c *Chats) History(id string) ([]model.ChatMessage, error) {
	s, err := c.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.history), nil
}

// Close discards a session.
func (c *Chats) Close(id string) {
	c.mu.Lock()
	_, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if ok {
		metrics.ChatSessionsActive.Dec()
	}
}

// Len returns the number of open sessions.
func (c *Chats) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// evictLocked drops idle sessions and, when still at capacity, the least
// recently used one. It returns how many sessions were removed.
func (c *Chats) evictLocked(now time.Time) int {
	cutoff := now.Add(-ChatIdleTTL).UnixNano()
	n := 0
	for id, s := range c.sessions {
		if s.lastUsed.Load() < cutoff {
			delete(c.sessions, id)
			n++
		}
	}
	for len(c.sessions) >= MaxChatSessions {
		oldestID, oldest := "", int64(0)
		for id, s := range c.sessions {
			if t := s.lastUsed.Load(); oldestID == "" || t < oldest {
				oldestID, oldest = id, t
			}
		}
		delete(c.sessions, oldestID)
		n++
	}
	return n
}

func (c *Chats) get(id string) (*chatSession, error) {
	c.mu.RLock()
	s, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chat session %s: %w", id, ErrNotFound)
	}
	s.touch(c.now())
	return s, nil
}

// Send appends a user turn and the assistant's reply. A failed provider
// call yields ChatErrorReply instead of an error. Turns within one session
// are serialized. onToken may be nil.
func (c *Chats) Send(ctx context.Context, id, message string, onToken llm.StreamCallback) (model.ChatMessage, []model.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return model.ChatMessage{}, nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	s, err := c.get(id)
	if err != nil {
		return model.ChatMessage{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, model.ChatMessage{Role: model.ChatRoleUser, Text: message})

	text, err := c.gateway.Chat(ctx, s.history, onToken)
	if err != nil {
		c.logger.Warn("chat turn failed", zap.String("session_id", id), zap.Error(err))
		text = ChatErrorReply
	}
	reply := model.ChatMessage{Role: model.ChatRoleModel, Text: text}
	s.history = append(s.history, reply)

	return reply, clone(s.history), nil
}

func clone(h []model.ChatMessage) []model.ChatMessage {
	return append([]model.ChatMessage(nil), h...)
}
