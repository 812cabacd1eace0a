package profile

import (
	"context"
	"sync"
	"time"
)

// Profile is the durable user record maintained by the registration flow.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Birthdate    string    `json:"birthdate,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Country      string    `json:"country,omitempty"`
	ConsentGiven bool      `json:"consent_given,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Completeness struct {
	IsComplete   bool
	MissingSteps []string
}

// Store is the external user-profile collaborator.
type Store interface {
	FindByIdentity(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, p *Profile) error
	ValidateCompleteness(ctx context.Context, id string) (Completeness, error)
}

// MemoryStore keeps profiles in process. Default for tests and examples.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile), now: time.Now}
}

func (s *MemoryStore) FindByIdentity(ctx context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.CreatedAt = s.now()
	cp.UpdatedAt = cp.CreatedAt
	s.profiles[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[p.ID]
	if !ok {
		cp := *p
		cp.CreatedAt = s.now()
		cp.UpdatedAt = cp.CreatedAt
		s.profiles[cp.ID] = &cp
		return nil
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = s.now()
	s.profiles[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) ValidateCompleteness(ctx context.Context, id string) (Completeness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Completeness{MissingSteps: []string{"name", "email", "details", "consent"}}, nil
	}
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Email == "" {
		missing = append(missing, "email")
	}
	if p.Birthdate == "" || p.Country == "" {
		missing = append(missing, "details")
	}
	if !p.ConsentGiven {
		missing = append(missing, "consent")
	}
	return Completeness{IsComplete: len(missing) == 0, MissingSteps: missing}, nil
}

var _ Store = (*MemoryStore)(nil)
