package archive

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/application"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
)

// DeviceProvider resolves the partition key for the current device.
type DeviceProvider interface {
	DeviceID(ctx context.Context) (string, error)
}

// Archive is the best-effort history store. Failures are logged and never
// returned to the caller.
// Archive is safe for concurrent use if the repository is.
type Archive struct {
	Repo    domain.Repository
	Devices DeviceProvider
	Clock   application.Clock
	Logger  *zap.Logger
}

func New(repo domain.Repository, devices DeviceProvider, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.L()
	}
	return &Archive{Repo: repo, Devices: devices, Clock: application.SystemClock{}, Logger: logger}
}

// SaveCommand carries a finished analysis to be archived.
type SaveCommand struct {
	Analysis       repair.Analysis
	Media          []repair.MediaItem
	Query          string
	SkillLevel     repair.SkillLevel
	CompletedSteps []int
}

// NewScan stamps a command with a fresh id and the current time. Device is
// filled in by Save.
func (a *Archive) NewScan(cmd SaveCommand) *domain.StoredScan {
	completed := cmd.CompletedSteps
	if completed == nil {
		completed = []int{}
	}
	return &domain.StoredScan{
		ID:             domain.ScanID(uuid.NewString()),
		CreatedAt:      a.Clock.Now(),
		Analysis:       cmd.Analysis,
		Media:          cmd.Media,
		Query:          cmd.Query,
		SkillLevel:     cmd.SkillLevel,
		CompletedSteps: completed,
	}
}

// Save persists the scan under the current device. The scan is returned even
// when persistence failed; ok reports whether it was stored.
func (a *Archive) Save(ctx context.Context, scan *domain.StoredScan) (ok bool) {
	device, err := a.Devices.DeviceID(ctx)
	if err != nil {
		a.Logger.Error("archive save: device identity", zap.Error(err))
		return false
	}
	scan.DeviceID = device
	if err := a.Repo.Insert(ctx, scan); err != nil {
		a.Logger.Error("archive save failed",
			zap.String("scan_id", string(scan.ID)),
			zap.String("device_id", device),
			zap.Error(err),
		)
		return false
	}
	return true
}

// List returns the device's scans newest first, or an empty slice on failure.
func (a *Archive) List(ctx context.Context) []*domain.StoredScan {
	device, err := a.Devices.DeviceID(ctx)
	if err != nil {
		a.Logger.Error("archive list: device identity", zap.Error(err))
		return []*domain.StoredScan{}
	}
	out, err := a.Repo.ListByDevice(ctx, device)
	if err != nil {
		a.Logger.Error("archive list failed", zap.String("device_id", device), zap.Error(err))
		return []*domain.StoredScan{}
	}
	if out == nil {
		out = []*domain.StoredScan{}
	}
	return out
}

// Delete removes one scan. Missing ids are a no-op.
func (a *Archive) Delete(ctx context.Context, id domain.ScanID) {
	device, err := a.Devices.DeviceID(ctx)
	if err != nil {
		a.Logger.Error("archive delete: device identity", zap.Error(err))
		return
	}
	if err := a.Repo.Delete(ctx, device, id); err != nil {
		a.Logger.Error("archive delete failed", zap.String("scan_id", string(id)), zap.Error(err))
	}
}
