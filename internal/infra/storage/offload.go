package storage

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
)

// OffloadRepository keeps media payloads in an object store and only their
// keys in the wrapped repository.
type OffloadRepository struct {
	Inner  domain.Repository
	Media  domain.MediaStore
	Logger *zap.Logger
}

func NewOffloadRepository(inner domain.Repository, media domain.MediaStore, logger *zap.Logger) *OffloadRepository {
	if logger == nil {
		logger = zap.L()
	}
	return &OffloadRepository{Inner: inner, Media: media, Logger: logger}
}

func scanPrefix(device string, id domain.ScanID) string {
	return fmt.Sprintf("%s/%s/", device, id)
}

func (r *OffloadRepository) Insert(ctx context.Context, s *domain.StoredScan) error {
	prefix := scanPrefix(s.DeviceID, s.ID)
	stripped := make([]repair.MediaItem, len(s.Media))
	for i, m := range s.Media {
		if m.Data == "" {
			stripped[i] = m
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			return eris.Wrapf(err, "decode media %s", m.ID)
		}
		key := fmt.Sprintf("%s%d", prefix, i)
		if err := r.Media.PutMedia(ctx, key, raw, m.MIMEType); err != nil {
			r.cleanup(ctx, prefix)
			return err
		}
		m.Data = ""
		m.PreviewURL = ""
		m.ObjectKey = key
		stripped[i] = m
	}

	row := *s
	row.Media = stripped
	if err := r.Inner.Insert(ctx, &row); err != nil {
		r.cleanup(ctx, prefix)
		return err
	}
	return nil
}

func (r *OffloadRepository) ListByDevice(ctx context.Context, deviceID string) ([]*domain.StoredScan, error) {
	scans, err := r.Inner.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	for _, s := range scans {
		for i := range s.Media {
			m := &s.Media[i]
			if m.ObjectKey == "" {
				continue
			}
			raw, err := r.Media.GetMedia(ctx, m.ObjectKey)
			if err != nil {
				// scan tetap ditampilkan, item tanpa payload
				r.Logger.Warn("media rehydrate failed",
					zap.String("scan_id", string(s.ID)),
					zap.String("object_key", m.ObjectKey),
					zap.Error(err),
				)
				continue
			}
			m.Data = base64.StdEncoding.EncodeToString(raw)
			m.PreviewURL = m.DataURL()
			m.ObjectKey = ""
		}
	}
	return scans, nil
}

func (r *OffloadRepository) Delete(ctx context.Context, deviceID string, id domain.ScanID) error {
	if err := r.Inner.Delete(ctx, deviceID, id); err != nil {
		return err
	}
	return r.Media.RemovePrefix(ctx, scanPrefix(deviceID, id))
}

func (r *OffloadRepository) cleanup(ctx context.Context, prefix string) {
	if err := r.Media.RemovePrefix(ctx, prefix); err != nil {
		r.Logger.Warn("media cleanup failed", zap.String("prefix", prefix), zap.Error(err))
	}
}
