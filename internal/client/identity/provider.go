package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// Provider hands out the device token, creating and persisting it on first use.
type Provider struct {
	Store Store
	NewID func() string

	mu     sync.Mutex
	cached string
}

func NewProvider(store Store) *Provider {
	return &Provider{Store: store, NewID: uuid.NewString}
}

func (p *Provider) DeviceID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != "" {
		return p.cached, nil
	}
	id, ok, err := p.Store.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(id) == "" {
		newID := p.NewID
		if newID == nil {
			newID = uuid.NewString
		}
		id = newID()
		if err := p.Store.Set(ctx, KeyDeviceID, id); err != nil {
			return "", eris.Wrap(err, "persist device id")
		}
	}
	p.cached = id
	return id, nil
}

// Preferences reads and writes user settings kept on this device.
type Preferences struct {
	Store Store
}

// SkillLevel falls back to Novice when unset or unreadable.
func (p Preferences) SkillLevel(ctx context.Context) repair.SkillLevel {
	v, ok, err := p.Store.Get(ctx, KeySkillLevel)
	if err != nil || !ok {
		return repair.DefaultSkillLevel
	}
	return repair.ParseSkillLevel(v)
}

func (p Preferences) SetSkillLevel(ctx context.Context, lvl repair.SkillLevel) error {
	return p.Store.Set(ctx, KeySkillLevel, string(lvl))
}

// APIKey is the model credential the user pasted on this device, if any.
func (p Preferences) APIKey(ctx context.Context) string {
	v, _, err := p.Store.Get(ctx, KeyAPIKey)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func (p Preferences) SetAPIKey(ctx context.Context, key string) error {
	return p.Store.Set(ctx, KeyAPIKey, strings.TrimSpace(key))
}
