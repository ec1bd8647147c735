// Package s3sync mirrors finished column-store chunk files to S3, per
// SPEC_FULL.md §4.12. It is best-effort: upload failures are logged and
// never fail the ingest run, since the column store on disk remains the
// durable source of truth.
package s3sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Syncer uploads files to one S3 bucket using the default AWS credential
// chain (environment, shared config, EC2/ECS role).
type Syncer struct {
	client *s3.Client
	bucket string
	logger *log.Logger
}

// New resolves the default AWS config and returns a Syncer for bucket.
func New(ctx context.Context, bucket string, logger *log.Logger) (*Syncer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3sync: loading AWS config: %w", err)
	}
	return &Syncer{client: s3.NewFromConfig(cfg), bucket: bucket, logger: logger}, nil
}

// SyncFiles uploads each local path under its base name as the S3 key.
// A failure on any individual file is logged and skipped; SyncFiles never
// returns an error itself, matching the "sync is a mirror, not a
// dependency" contract from SPEC_FULL.md §4.12.
func (s *Syncer) SyncFiles(ctx context.Context, paths []string) {
	for _, path := range paths {
		if err := s.syncOne(ctx, path); err != nil {
			s.logger.Printf("s3sync: upload of %s failed, continuing: %v", path, err)
		}
	}
}

func (s *Syncer) syncOne(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	key := objectKeyFor(path)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", key, err)
	}
	return nil
}

// objectKeyFor derives the S3 key for a local chunk/space file path: its
// base name, so the bucket layout is flat regardless of local directory
// structure.
func objectKeyFor(path string) string {
	return filepath.Base(path)
}
