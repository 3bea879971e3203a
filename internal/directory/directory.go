// Package directory resolves user ids to display profiles.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"securechat/internal/domain"
)

// Static is an in-process UserDirectory backed by a map.
type Static struct {
	mu    sync.RWMutex
	users map[domain.UserID]domain.UserProfile
}

// NewStatic returns a directory holding profiles.
func NewStatic(profiles ...domain.UserProfile) *Static {
	d := &Static{users: make(map[domain.UserID]domain.UserProfile, len(profiles))}
	for _, p := range profiles {
		d.users[p.ID] = p
	}
	return d
}

// LoadFile reads a JSON array of profiles. A missing file yields an empty
// directory.
func LoadFile(path string) (*Static, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewStatic(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var profiles []domain.UserProfile
	if err := json.Unmarshal(b, &profiles); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", path, err)
	}
	return NewStatic(profiles...), nil
}

// Put adds or replaces a profile.
func (d *Static) Put(p domain.UserProfile) {
	d.mu.Lock()
	d.users[p.ID] = p
	d.mu.Unlock()
}

func (d *Static) GetUserByID(_ context.Context, id domain.UserID) (domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.users[id]
	if !ok {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	return p, nil
}

// DisplayName labels id for display. Any lookup failure falls back to the id.
func DisplayName(ctx context.Context, dir domain.UserDirectory, id domain.UserID) string {
	if dir == nil {
		return id.String()
	}
	p, err := dir.GetUserByID(ctx, id)
	if err != nil {
		return id.String()
	}
	if p.ID == "" {
		p.ID = id
	}
	return p.DisplayName()
}

var _ domain.UserDirectory = (*Static)(nil)
