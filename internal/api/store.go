package api

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/typetalk-app/typetalk/internal/services"
)

// memoryStore is the default Store: good enough for development and the
// backing fake for handler tests. All methods copy on the way out.
type memoryStore struct {
	mu    sync.RWMutex
	users map[string]*services.UserRow
	chats []*services.ChatRow
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store { return newMemoryStore() }

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[string]*services.UserRow{}}
}

func (s *memoryStore) UpsertProfile(p *services.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.users[p.Phone]
	if row == nil {
		row = &services.UserRow{}
		s.users[p.Phone] = row
	}
	row.Profile = *p
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryStore) UpsertResult(p *services.Profile, r *services.TypologyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var key string
	if p != nil {
		key = p.Phone
	}
	row := s.users[key]
	if row == nil {
		row = &services.UserRow{}
		s.users[key] = row
	}
	if p != nil {
		row.Profile = *p
	}
	res := *r
	row.Result = &res
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryStore) GetUser(phone string) (*services.UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.users[phone]
	if row == nil {
		return nil, nil
	}
	out := *row
	return &out, nil
}

func (s *memoryStore) AppendChat(row *services.ChatRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.ID == "" {
		row.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	cp := *row
	s.chats = append(s.chats, &cp)
	return row.ID, nil
}

func (s *memoryStore) GetChatContent(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.chats {
		if r.ID == id {
			return r.Content, nil
		}
	}
	return "", services.NewNotFoundError("chat row not found")
}

func (s *memoryStore) ListChat(phone string) ([]*services.ChatRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.ChatRow, 0, len(s.chats))
	for _, r := range s.chats {
		if r.Phone == phone {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) ListRecentChat(phone, role string, limit int) ([]*services.ChatRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.ChatRow, 0, limit)
	for i := len(s.chats) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.chats[i]
		if r.Phone == phone && r.Role == role {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) UpdateChatContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.chats {
		if r.ID == id {
			r.Content = content
			return nil
		}
	}
	return services.NewNotFoundError("chat row not found")
}
