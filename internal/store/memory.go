package store

import (
	"context"
	"sync"
	"time"
)

type Message struct {
	Role    string
	Content string
}

// HistoryStore keeps the web chatbot transcript per cookie session.
type HistoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]Message
	maxMessages int
}

func NewHistoryStore(maxMessages int) *HistoryStore {
	return &HistoryStore{
		sessions:    make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

func (m *HistoryStore) Append(sessionID string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	m.trimLocked(sessionID)
}

func (m *HistoryStore) Get(sessionID string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sessions[sessionID]
	copyMsgs := make([]Message, len(msgs))
	copy(copyMsgs, msgs)
	return copyMsgs
}

func (m *HistoryStore) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *HistoryStore) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.sessions[sessionID]
	if len(msgs) > m.maxMessages {
		m.sessions[sessionID] = msgs[len(msgs)-m.maxMessages:]
	}
}

// MemoryPreferenceStore keeps preference records for the life of the process.
type MemoryPreferenceStore struct {
	mu      sync.RWMutex
	byPhone map[string]Preference
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{byPhone: make(map[string]Preference)}
}

func (m *MemoryPreferenceStore) GetByPhone(ctx context.Context, phone string) (*Preference, error) {
	if phone == "" {
		return nil, ErrInvalidKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byPhone[phone]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryPreferenceStore) Put(ctx context.Context, p *Preference) error {
	if p == nil || p.Phone == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	c.UpdatedAt = time.Now()
	m.byPhone[p.Phone] = c
	return nil
}
