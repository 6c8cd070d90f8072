package scans

import "context"

// Repository port (interface untuk persistence)
//
// Rows are partitioned by device id. Delete is idempotent: removing an id that
// does not exist is not an error.
type Repository interface {
	Insert(ctx context.Context, s *StoredScan) error
	ListByDevice(ctx context.Context, deviceID string) ([]*StoredScan, error)
	Delete(ctx context.Context, deviceID string, id ScanID) error
}

// MediaStore holds media payloads outside the row store.
type MediaStore interface {
	PutMedia(ctx context.Context, key string, data []byte, contentType string) error
	GetMedia(ctx context.Context, key string) ([]byte, error)
	RemovePrefix(ctx context.Context, prefix string) error
}
