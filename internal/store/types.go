package store

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidKey = errors.New("store: empty key")

// FieldValue is one accumulated numeric input of a field collection.
type FieldValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Session is the per-dial-in USSD state. It lives from the first request
// carrying an unseen session key until a terminal response or the idle TTL.
type Session struct {
	Key          string       `json:"key"`
	UserID       string       `json:"user_id"`
	Phone        string       `json:"phone"`
	ServiceCode  string       `json:"service_code"`
	Node         string       `json:"node"`
	Language     string       `json:"language"`
	Fields       []FieldValue `json:"fields,omitempty"`
	LastPath     string       `json:"last_path"`
	LastResponse string       `json:"last_response"`
	Complete     bool         `json:"complete"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the Fields slice.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Fields = append([]FieldValue(nil), s.Fields...)
	return &c
}

// Preference is what a caller chose through the "set X" menus. It is keyed by
// phone number so a returning caller keeps the settings across sessions.
type Preference struct {
	UserID      string    `json:"user_id"`
	Phone       string    `json:"phone_number"`
	Language    string    `json:"language"`
	Location    string    `json:"location"`
	FarmingType string    `json:"farming_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SessionStore keeps USSD sessions. Get returns (nil, nil) for unknown or expired keys.
type SessionStore interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, key string) error
}

// PreferenceStore keeps preference records. Put is last-write-wins.
type PreferenceStore interface {
	GetByPhone(ctx context.Context, phone string) (*Preference, error)
	Put(ctx context.Context, p *Preference) error
}
