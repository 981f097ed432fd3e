package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tcontas-backend/internal/shared/storage/object"
)

// Config holds the MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Store implements ObjectStore on a MinIO (or any S3 compatible) bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New creates the client and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := &Store{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads the reader to key. Without Upsert an existing object fails with
// ErrObjectExists. The check is a stat before the put, so on MinIO it is best
// effort: two writers racing on the same key can both pass it and the last
// one wins.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, opts object.PutOptions) error {
	clean, err := object.CleanKey(key)
	if err != nil {
		return err
	}
	if !opts.Upsert {
		_, err := s.client.StatObject(ctx, s.bucket, clean, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("minio put %s: %w", clean, object.ErrObjectExists)
		}
		if !isNotFound(err) {
			return fmt.Errorf("minio stat %s: %w", clean, err)
		}
	}
	_, err = s.client.PutObject(ctx, s.bucket, clean, r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", clean, err)
	}
	return nil
}

// Open returns a reader for the stored object.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", clean, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("minio get %s: %w", clean, object.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("minio stat %s: %w", clean, err)
	}
	return obj, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	clean, err := object.CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, clean, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", clean, err)
	}
	return nil
}

// Stat reports object size and modification time.
func (s *Store) Stat(ctx context.Context, key string) (object.ObjectInfo, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return object.ObjectInfo{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, clean, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return object.ObjectInfo{}, fmt.Errorf("minio stat %s: %w", clean, object.ErrObjectNotFound)
		}
		return object.ObjectInfo{}, fmt.Errorf("minio stat %s: %w", clean, err)
	}
	return object.ObjectInfo{Key: clean, Size: info.Size, LastModified: info.LastModified.UTC()}, nil
}

// SignedURL returns a presigned GET URL valid for ttl.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, clean, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", clean, err)
	}
	return u.String(), nil
}

// List returns objects under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]object.ObjectInfo, error) {
	listPrefix := ""
	if strings.TrimSpace(prefix) != "" {
		clean, err := object.CleanKey(prefix)
		if err != nil {
			return nil, err
		}
		listPrefix = clean + "/"
	}

	var out []object.ObjectInfo
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("minio list %s: %w", listPrefix, info.Err)
		}
		out = append(out, object.ObjectInfo{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified.UTC(),
		})
	}
	return out, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return true
	}
	var target minio.ErrorResponse
	return errors.As(err, &target) && target.Code == "NoSuchKey"
}

var _ object.ObjectStore = (*Store)(nil)
