package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
)

// ScanRepository stores StoredScans in one table; JSON columns hold the
// analysis, media and completed steps.
type ScanRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewScanRepository(db *sql.DB, d Dialect) *ScanRepository {
	return &ScanRepository{db: db, dialect: d}
}

// Insert adds a new record. Ids are client generated and assumed unique.
func (r *ScanRepository) Insert(ctx context.Context, s *domain.StoredScan) error {
	const q = `
INSERT INTO repair_scans
(id, device_id, created_at, user_query, skill_level, analysis, media, completed_steps)
VALUES (?,?,?,?,?,?,?,?)`

	if s.ID == "" {
		return eris.New("scan id is required")
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	analysis, err := json.Marshal(s.Analysis)
	if err != nil {
		return eris.Wrap(err, "marshal analysis")
	}
	media := s.Media
	if media == nil {
		media = []repair.MediaItem{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return eris.Wrap(err, "marshal media")
	}
	steps := s.CompletedSteps
	if steps == nil {
		steps = []int{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return eris.Wrap(err, "marshal completed steps")
	}

	_, err = r.db.ExecContext(ctx, rebind(r.dialect, q),
		string(s.ID), stringOrDash(s.DeviceID), created.UnixMilli(), s.Query,
		string(s.SkillLevel), string(analysis), string(mediaJSON), string(stepsJSON),
	)
	return eris.Wrapf(err, "insert scan %s", s.ID)
}

// ListByDevice returns newest first.
func (r *ScanRepository) ListByDevice(ctx context.Context, deviceID string) ([]*domain.StoredScan, error) {
	const q = `
SELECT id, device_id, created_at, user_query, skill_level, analysis, media, completed_steps
FROM repair_scans
WHERE device_id=?
ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, q), deviceID)
	if err != nil {
		return nil, eris.Wrap(err, "list scans")
	}
	defer rows.Close()

	out := []*domain.StoredScan{}
	for rows.Next() {
		var (
			s                      domain.StoredScan
			id, skill              string
			createdMS              int64
			analysis, media, steps string
		)
		if err := rows.Scan(&id, &s.DeviceID, &createdMS, &s.Query, &skill, &analysis, &media, &steps); err != nil {
			return nil, eris.Wrap(err, "scan row")
		}
		s.ID = domain.ScanID(id)
		s.SkillLevel = repair.SkillLevel(skill)
		s.CreatedAt = time.UnixMilli(createdMS).UTC()
		if err := json.Unmarshal([]byte(analysis), &s.Analysis); err != nil {
			return nil, eris.Wrapf(err, "decode analysis of %s", id)
		}
		if err := json.Unmarshal([]byte(media), &s.Media); err != nil {
			return nil, eris.Wrapf(err, "decode media of %s", id)
		}
		if err := json.Unmarshal([]byte(steps), &s.CompletedSteps); err != nil {
			return nil, eris.Wrapf(err, "decode completed steps of %s", id)
		}
		out = append(out, &s)
	}
	return out, eris.Wrap(rows.Err(), "iterate scans")
}

// Delete is scoped to the device and is a no-op when the id is absent.
func (r *ScanRepository) Delete(ctx context.Context, deviceID string, id domain.ScanID) error {
	const q = `DELETE FROM repair_scans WHERE device_id=? AND id=?`
	_, err := r.db.ExecContext(ctx, rebind(r.dialect, q), deviceID, string(id))
	return eris.Wrapf(err, "delete scan %s", id)
}
