package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/mainstar123/finchat/pkg/state"
)

// FileStore persists conversation state as JSON files under a root
// directory: threads/<id>.json per conversation, index.json for the
// (user, channel) mapping and resets.json for the reset audit trail.
type FileStore struct {
	root    string
	mu      sync.Mutex
	ceiling int
	newID   func() string
}

type fileIndex struct {
	ByKey map[string]string `json:"by_key"`
	ByID  map[string]string `json:"by_id"`
}

func NewFileStore(root string, ceiling int) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("context store root required")
	}
	if ceiling <= 0 {
		ceiling = DefaultMessageCeiling
	}
	if err := os.MkdirAll(filepath.Join(root, "threads"), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root, ceiling: ceiling, newID: uuid.NewString}, nil
}

func (s *FileStore) statePath(threadID string) string {
	return filepath.Join(s.root, "threads", threadID+".json")
}

func (s *FileStore) readIndex() (fileIndex, error) {
	idx := fileIndex{ByKey: map[string]string{}, ByID: map[string]string{}}
	data, err := os.ReadFile(filepath.Join(s.root, "index.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return idx, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, err
	}
	if idx.ByKey == nil {
		idx.ByKey = map[string]string{}
	}
	if idx.ByID == nil {
		idx.ByID = map[string]string{}
	}
	return idx, nil
}

func (s *FileStore) writeIndex(idx fileIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, "index.json"), data, 0o644)
}

func (s *FileStore) readResets() (map[string]string, error) {
	out := map[string]string{}
	data, err := os.ReadFile(filepath.Join(s.root, "resets.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (s *FileStore) writeResets(resets map[string]string) error {
	data, err := json.MarshalIndent(resets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, "resets.json"), data, 0o644)
}

func (s *FileStore) GetOrCreateThreadID(ctx context.Context, userID, channel string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndex()
	if err != nil {
		return "", err
	}
	key := threadKey(userID, channel)
	if id, ok := idx.ByKey[key]; ok {
		return id, nil
	}
	id := s.newID()
	idx.ByKey[key] = id
	idx.ByID[id] = key
	if err := s.writeIndex(idx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *FileStore) GetState(ctx context.Context, threadID string) (*state.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.statePath(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var conv state.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *FileStore) SetState(ctx context.Context, threadID string, conv *state.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath(threadID), data, 0o644)
}

func (s *FileStore) CheckAndResetIfNeeded(ctx context.Context, threadID string, messageCount int) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if messageCount <= s.ceiling {
		return threadID, false, nil
	}
	idx, err := s.readIndex()
	if err != nil {
		return threadID, false, err
	}
	newID := s.newID()
	if key, ok := idx.ByID[threadID]; ok {
		idx.ByKey[key] = newID
		idx.ByID[newID] = key
		delete(idx.ByID, threadID)
		if err := s.writeIndex(idx); err != nil {
			return threadID, false, err
		}
	}
	resets, err := s.readResets()
	if err != nil {
		return threadID, false, err
	}
	resets[threadID] = newID
	if err := s.writeResets(resets); err != nil {
		return threadID, false, err
	}
	return newID, true, nil
}

func (s *FileStore) Resets(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readResets()
}

var _ Store = (*FileStore)(nil)
