// Package objectstore implements the Raw Object Writer (C3): it persists
// canonical JSON under a deterministic, content-addressed key and returns
// the key/etag/timestamp the staging ledger needs. Interface and LocalStore
// fallback grounded on internal/connector/minio/object_store.go; S3Store
// grounded on internal/connector/minio/s3_client.go.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PutResult is what the orchestrator threads into the staging ledger.
type PutResult struct {
	Key     string
	ETag    string
	SavedAt time.Time
}

// Store abstracts the object-store operations the ETL path needs.
type Store interface {
	PutJSON(ctx context.Context, bucket, key string, body []byte) (PutResult, error)
	GetJSON(ctx context.Context, bucket, key string) ([]byte, error)
}

// Key builds the deterministic raw-object key:
// raw/source=<s>/entity=<e>/source_id=<id>/hash=<h>.json
func Key(source, entity, sourceID, hash string) string {
	return fmt.Sprintf("raw/source=%s/entity=%s/source_id=%s/hash=%s.json", source, entity, sourceID, hash)
}

// LocalStore persists objects on disk; used in dev/test in place of MinIO.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local object store rooted at dir (or a temp dir).
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "giftreco-objectstore")
	}
	_ = os.MkdirAll(root, 0o755)
	return &LocalStore{root: root}
}

func (s *LocalStore) PutJSON(ctx context.Context, bucket, key string, body []byte) (PutResult, error) {
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}
	full := filepath.Join(s.root, sanitize(bucket), filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(full, body, 0o644); err != nil {
		return PutResult{}, fmt.Errorf("write object: %w", err)
	}
	return PutResult{Key: key, ETag: weakETag(body), SavedAt: time.Now().UTC()}, nil
}

func (s *LocalStore) GetJSON(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(s.root, sanitize(bucket), filepath.FromSlash(key))
	return os.ReadFile(full)
}

func sanitize(s string) string {
	s = filepath.Clean("/" + s)
	return s[1:]
}

// weakETag is a stand-in for the ETag MinIO would return: the body length in
// hex. It does not distinguish bodies of equal length; the object key already
// carries the content hash, so this never needs to match S3 semantics.
func weakETag(body []byte) string {
	return fmt.Sprintf("%x", len(body))
}
