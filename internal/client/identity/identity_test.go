package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

func TestProvider_LazyAndStable(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	p := NewProvider(store)
	p.NewID = func() string { calls++; return "dev-1" }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := p.DeviceID(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "dev-1", id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)

	// a fresh provider over the same store reuses the persisted token
	p2 := NewProvider(store)
	p2.NewID = func() string { return "other" }
	id, err := p2.DeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id)
}

func TestFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.yaml")
	ctx := context.Background()

	first, err := NewProvider(NewFileStore(path)).DeviceID(ctx)
	require.NoError(t, err)
	second, err := NewProvider(NewFileStore(path)).DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	prefs := Preferences{Store: NewFileStore(path)}
	assert.Equal(t, repair.SkillNovice, prefs.SkillLevel(ctx))
	require.NoError(t, prefs.SetSkillLevel(ctx, repair.SkillExpert))
	assert.Equal(t, repair.SkillExpert, Preferences{Store: NewFileStore(path)}.SkillLevel(ctx))

	require.NoError(t, prefs.SetAPIKey(ctx, "  key-123 "))
	assert.Equal(t, "key-123", prefs.APIKey(ctx))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("locked")
}
func (failingStore) Set(context.Context, string, string) error { return errors.New("locked") }

func TestFailures(t *testing.T) {
	_, err := NewProvider(failingStore{}).DeviceID(context.Background())
	assert.Error(t, err)
	assert.Equal(t, repair.SkillNovice, Preferences{Store: failingStore{}}.SkillLevel(context.Background()))
}
