package archive

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/application"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[domain.ScanID]*domain.StoredScan
	err  error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[domain.ScanID]*domain.StoredScan{}} }

func (m *memRepo) Insert(_ context.Context, s *domain.StoredScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memRepo) ListByDevice(_ context.Context, device string) ([]*domain.StoredScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.StoredScan
	for _, s := range m.rows {
		if s.DeviceID == device {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, device string, id domain.ScanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if s, ok := m.rows[id]; ok && s.DeviceID == device {
		delete(m.rows, id)
	}
	return nil
}

type staticDevice string

func (d staticDevice) DeviceID(context.Context) (string, error) { return string(d), nil }

type brokenDevice struct{}

func (brokenDevice) DeviceID(context.Context) (string, error) { return "", errors.New("disk full") }

func analysisFixture() repair.Analysis {
	return repair.Analysis{
		ObjectName:    "Lamp",
		DangerLevel:   repair.DangerLow,
		Steps:         []string{"a", "b"},
		ToolsRequired: []string{},
	}
}

func TestArchive_RoundTripAndIsolation(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	mine := New(repo, staticDevice("dev-a"), zap.NewNop())
	theirs := New(repo, staticDevice("dev-b"), zap.NewNop())

	media := []repair.MediaItem{{ID: "1", Data: "Zm9v", MIMEType: "image/png", Kind: repair.MediaImage}}
	scan := mine.NewScan(SaveCommand{Analysis: analysisFixture(), Media: media, SkillLevel: repair.SkillExpert})
	require.True(t, mine.Save(ctx, scan))

	got := mine.List(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, scan.Analysis, got[0].Analysis)
	assert.Equal(t, media, got[0].Media)
	assert.Equal(t, "dev-a", got[0].DeviceID)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, []int{}, got[0].CompletedSteps)

	assert.Empty(t, theirs.List(ctx))
}

func TestArchive_ListNewestFirst(t *testing.T) {
	repo := newMemRepo()
	a := New(repo, staticDevice("dev"), zap.NewNop())
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a.Clock = application.FixedClock(t0)
	first := a.NewScan(SaveCommand{Analysis: analysisFixture()})
	a.Clock = application.FixedClock(t0.Add(time.Minute))
	second := a.NewScan(SaveCommand{Analysis: analysisFixture()})
	a.Save(context.Background(), first)
	a.Save(context.Background(), second)

	got := a.List(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
}

func TestArchive_DeleteMissingIsNoop(t *testing.T) {
	repo := newMemRepo()
	a := New(repo, staticDevice("dev"), zap.NewNop())
	keep := a.NewScan(SaveCommand{Analysis: analysisFixture()})
	a.Save(context.Background(), keep)

	a.Delete(context.Background(), "does-not-exist")
	assert.Len(t, a.List(context.Background()), 1)

	a.Delete(context.Background(), keep.ID)
	assert.Empty(t, a.List(context.Background()))
}

func TestArchive_FailuresAreSwallowed(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("connection refused")
	a := New(repo, staticDevice("dev"), zap.NewNop())

	assert.False(t, a.Save(context.Background(), a.NewScan(SaveCommand{})))
	got := a.List(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
	a.Delete(context.Background(), "x")

	b := New(newMemRepo(), brokenDevice{}, zap.NewNop())
	assert.False(t, b.Save(context.Background(), b.NewScan(SaveCommand{})))
	assert.Empty(t, b.List(context.Background()))
}
