package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilePreferenceStore persists preference records as one JSON document on disk.
// Suitable for a single gateway instance without a database.
type FilePreferenceStore struct {
	mu   sync.Mutex
	path string
}

func NewFilePreferenceStore(path string) *FilePreferenceStore {
	return &FilePreferenceStore{path: path}
}

func (f *FilePreferenceStore) GetByPhone(ctx context.Context, phone string) (*Preference, error) {
	if phone == "" {
		return nil, ErrInvalidKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.readLocked()
	if err != nil {
		return nil, err
	}
	p, ok := all[phone]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *FilePreferenceStore) Put(ctx context.Context, p *Preference) error {
	if p == nil || p.Phone == "" {
		return ErrInvalidKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.readLocked()
	if err != nil {
		return err
	}
	c := *p
	c.UpdatedAt = time.Now().UTC()
	all[p.Phone] = c
	return f.writeLocked(all)
}

func (f *FilePreferenceStore) readLocked() (map[string]Preference, error) {
	out := map[string]Preference{}
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FilePreferenceStore) writeLocked(all map[string]Preference) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	// Phone numbers are personal data
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
