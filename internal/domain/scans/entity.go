package scans

import (
	"time"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// ID tipe untuk StoredScan
type ScanID string

// StoredScan wraps one completed analysis with the media it was made from.
type StoredScan struct {
	ID             ScanID             `json:"id"`
	DeviceID       string             `json:"deviceId"`
	CreatedAt      time.Time          `json:"createdAt"`
	Analysis       repair.Analysis    `json:"analysis"`
	Media          []repair.MediaItem `json:"media"`
	Query          string             `json:"query,omitempty"`
	SkillLevel     repair.SkillLevel  `json:"skillLevel"`
	CompletedSteps []int              `json:"completedSteps"`
}

// Timestamp returns the creation time in epoch milliseconds, the unit the
// web client sorts by.
func (s *StoredScan) Timestamp() int64 {
	return s.CreatedAt.UnixMilli()
}
