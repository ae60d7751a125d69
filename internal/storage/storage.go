// Package storage pushes organized dataset trees to an S3-compatible
// bucket, preserving the split/category key layout.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rskworld/videoset/internal/config"
	"github.com/rskworld/videoset/internal/logging"
)

// Storage provides object storage operations
type Storage struct {
	client     *minio.Client
	bucketName string
	log        *logging.Logger
}

// New creates a new storage client and ensures the bucket exists.
func New(ctx context.Context, cfg config.StorageConfig, log *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		log:        log,
	}, nil
}

// UploadFile uploads a file from the local filesystem under key.
func (s *Storage) UploadFile(ctx context.Context, key, filePath string) error {
	_, err := s.client.FPutObject(ctx, s.bucketName, key, filePath, minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// UploadTree walks root and uploads every regular file, mapping
// root/<split>/<category>/<file> to prefix/<split>/<category>/<file>.
// Staging leftovers (dot-prefixed names) are skipped. Returns the
// number of uploaded objects.
func (s *Storage) UploadTree(ctx context.Context, root, prefix string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		if err := s.UploadFile(ctx, key, p); err != nil {
			return err
		}
		s.log.Debugf("Uploaded %s", key)
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("failed to upload tree %s: %w", root, err)
	}
	return uploaded, nil
}

// List lists object keys with a prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}
	return objects, nil
}

// contentType returns the content type based on file extension
func contentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
