package contextstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mainstar123/finchat/pkg/state"
)

// DefaultMessageCeiling bounds how much history a thread may accumulate
// before it is abandoned for a fresh id.
const DefaultMessageCeiling = 30

// Store maps (userId, channel) to a durable thread id and round-trips
// the full conversation state per turn. Implementations must make
// CheckAndResetIfNeeded re-point the (userId, channel) mapping at the
// freshly minted thread and record the old→new pair for audit.
type Store interface {
	GetOrCreateThreadID(ctx context.Context, userID, channel string) (string, error)
	GetState(ctx context.Context, threadID string) (*state.Conversation, error)
	SetState(ctx context.Context, threadID string, conv *state.Conversation) error
	CheckAndResetIfNeeded(ctx context.Context, threadID string, messageCount int) (string, bool, error)
	Resets(ctx context.Context) (map[string]string, error)
}

func threadKey(userID, channel string) string {
	return userID + "|" + channel
}

// MemoryStore is the in-process implementation.
type MemoryStore struct {
	mu      sync.Mutex
	byKey   map[string]string // (user|channel) -> thread id
	byID    map[string]string // thread id -> (user|channel)
	states  map[string]*state.Conversation
	resets  map[string]string // old thread id -> new thread id
	ceiling int
	newID   func() string
}

func NewMemoryStore(ceiling int) *MemoryStore {
	if ceiling <= 0 {
		ceiling = DefaultMessageCeiling
	}
	return &MemoryStore{
		byKey:   make(map[string]string),
		byID:    make(map[string]string),
		states:  make(map[string]*state.Conversation),
		resets:  make(map[string]string),
		ceiling: ceiling,
		newID:   uuid.NewString,
	}
}

func (s *MemoryStore) GetOrCreateThreadID(ctx context.Context, userID, channel string) (string, error) {
	key := threadKey(userID, channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[key]; ok {
		return id, nil
	}
	id := s.newID()
	s.byKey[key] = id
	s.byID[id] = key
	return id, nil
}

func (s *MemoryStore) GetState(ctx context.Context, threadID string) (*state.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.states[threadID]
	if !ok {
		return nil, nil
	}
	return conv.Clone(), nil
}

func (s *MemoryStore) SetState(ctx context.Context, threadID string, conv *state.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[threadID] = conv.Clone()
	return nil
}

func (s *MemoryStore) CheckAndResetIfNeeded(ctx context.Context, threadID string, messageCount int) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if messageCount <= s.ceiling {
		return threadID, false, nil
	}
	newID := s.newID()
	if key, ok := s.byID[threadID]; ok {
		s.byKey[key] = newID
		s.byID[newID] = key
		delete(s.byID, threadID)
	}
	s.resets[threadID] = newID
	return newID, true, nil
}

func (s *MemoryStore) Resets(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.resets))
	for k, v := range s.resets {
		out[k] = v
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
