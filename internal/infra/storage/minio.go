package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// Store menyimpan payload media di bucket MinIO/S3.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "minio: new client")
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "minio: bucket exists %s", bucket)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, eris.Wrapf(err, "minio: make bucket %s", bucket)
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

func (s *Store) PutMedia(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return eris.Wrapf(err, "minio: put %s", key)
}

func (s *Store) GetMedia(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "minio: get %s", key)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, eris.Wrapf(err, "minio: read %s", key)
	}
	return data, nil
}

// RemovePrefix hapus semua object di bawah prefix. Prefix kosong ditolak.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return eris.New("minio: refusing to remove empty prefix")
	}
	objects := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return eris.Wrapf(obj.Err, "minio: list %s", prefix)
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return eris.Wrapf(err, "minio: remove %s", obj.Key)
		}
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return eris.Wrapf(err, "minio: bucket exists %s", s.bucketName)
	}
	if !ok {
		return eris.Errorf("minio: bucket %s missing", s.bucketName)
	}
	return nil
}
