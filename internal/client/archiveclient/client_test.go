package archiveclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
	"github.com/bryanwahyu/resolve-ai/internal/infra/db"
	"github.com/bryanwahyu/resolve-ai/internal/infra/httpserver"
)

func TestClientAgainstServer(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Connect(ctx, db.SQLite, t.TempDir()+"/archive.db")
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.Migrate(ctx, conn, db.SQLite))

	srv := httptest.NewServer(httpserver.NewRouter(nil, db.NewScanRepository(conn, db.SQLite),
		httpserver.Options{Logger: zap.NewNop()}))
	defer srv.Close()

	c := New(srv.URL)
	device := uuid.NewString()
	scan := &domain.StoredScan{
		ID:        domain.ScanID(uuid.NewString()),
		DeviceID:  device,
		CreatedAt: time.UnixMilli(1_700_000_000_000).UTC(),
		Analysis: repair.Analysis{
			ObjectName: "Drill", DangerLevel: repair.DangerLow,
			Steps: []string{"charge"}, ToolsRequired: []string{},
		},
		Media:          []repair.MediaItem{{ID: "m", Data: "Zm9v", MIMEType: "image/png", Kind: repair.MediaImage}},
		SkillLevel:     repair.SkillIntermediate,
		CompletedSteps: []int{0},
	}
	require.NoError(t, c.Insert(ctx, scan))

	got, err := c.ListByDevice(ctx, device)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, scan.Analysis, got[0].Analysis)
	assert.Equal(t, scan.Media, got[0].Media)
	assert.Equal(t, []int{0}, got[0].CompletedSteps)

	other, err := c.ListByDevice(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, c.Delete(ctx, device, domain.ScanID(uuid.NewString())))
	require.NoError(t, c.Delete(ctx, device, scan.ID))
	got, err = c.ListByDevice(ctx, device)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, c.Insert(ctx, &domain.StoredScan{ID: "bad", DeviceID: device}))
}
