package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
)

func newTestRepo(t *testing.T) *ScanRepository {
	t.Helper()
	ctx := context.Background()
	conn, err := Connect(ctx, SQLite, filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, Migrate(ctx, conn, SQLite))
	return NewScanRepository(conn, SQLite)
}

func sampleScan(id, device string, at time.Time) *domain.StoredScan {
	return &domain.StoredScan{
		ID:        domain.ScanID(id),
		DeviceID:  device,
		CreatedAt: at,
		Query:     "How do I fix this?",
		Analysis: repair.Analysis{
			ObjectName:      "Toaster",
			DangerLevel:     repair.DangerLow,
			ConfidenceScore: 72,
			Reasoning:       "Lever spring detached",
			SafetyWarning:   "Unplug first",
			Steps:           []string{"Unplug", "Remove base", "Reattach spring"},
			ToolsRequired:   []string{"Phillips screwdriver"},
			ToolSubstitutions: []repair.ToolSubstitution{
				{Original: "Spudger", Substitute: "Credit card"},
			},
			EstimatedTime: "15 minutes",
		},
		Media: []repair.MediaItem{
			{ID: "m1", Data: "Zm9v", MIMEType: "image/jpeg", PreviewURL: "data:image/jpeg;base64,Zm9v", Kind: repair.MediaImage},
		},
		SkillLevel:     repair.SkillNovice,
		CompletedSteps: []int{0, 2},
	}
}

func TestScanRepository_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()

	in := sampleScan("a", "dev-1", now)
	require.NoError(t, repo.Insert(ctx, in))

	got, err := repo.ListByDevice(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in.Analysis, got[0].Analysis)
	assert.Equal(t, in.Media, got[0].Media)
	assert.Equal(t, in.CompletedSteps, got[0].CompletedSteps)
	assert.Equal(t, in.Query, got[0].Query)
	assert.True(t, now.Equal(got[0].CreatedAt))

	other, err := repo.ListByDevice(ctx, "dev-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestScanRepository_NewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, sampleScan("old", "dev", base.Add(-time.Hour))))
	require.NoError(t, repo.Insert(ctx, sampleScan("new", "dev", base)))

	got, err := repo.ListByDevice(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ScanID("new"), got[0].ID)
	assert.Equal(t, domain.ScanID("old"), got[1].ID)
}

func TestScanRepository_DeleteIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, sampleScan("keep", "dev", time.Now())))
	require.NoError(t, repo.Insert(ctx, sampleScan("drop", "dev", time.Now())))

	require.NoError(t, repo.Delete(ctx, "dev", "drop"))
	require.NoError(t, repo.Delete(ctx, "dev", "drop"))
	require.NoError(t, repo.Delete(ctx, "dev", "missing"))
	// other device cannot delete
	require.NoError(t, repo.Delete(ctx, "intruder", "keep"))

	got, err := repo.ListByDevice(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ScanID("keep"), got[0].ID)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a=$1 AND b=$2", rebind(Postgres, "a=? AND b=?"))
	assert.Equal(t, "a=? AND b=?", rebind(MySQL, "a=? AND b=?"))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	d, err = ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
