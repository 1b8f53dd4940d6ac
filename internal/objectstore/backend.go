package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/scmfs/scmfs/internal/circuit"
	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/retry"
)

// wireEntry is the CBOR-serialized form of a TreeEntry.
type wireEntry struct {
	Name string   `cbor:"n"`
	Type int      `cbor:"t"`
	ID   [32]byte `cbor:"i"`
}

// S3Backend implements Store against an S3-compatible bucket, addressing
// trees and blobs by the blake3 hash of their serialized contents.
type S3Backend struct {
	client *s3.Client
	pool   *ConnectionPool
	bucket string
	config *Config
	logger *slog.Logger

	mu      sync.RWMutex
	metrics BackendMetrics

	retryer *retry.Retryer
	breaker *circuit.CircuitBreaker
}

// BackendMetrics tracks aggregate fetch/store activity.
type BackendMetrics struct {
	BytesDownloaded int64
	BytesUploaded   int64
	Errors          int64
	LastError       string
	LastErrorAt     time.Time
}

// NewS3Backend builds a Store backed by an S3-compatible bucket.
func NewS3Backend(ctx context.Context, cfg *Config, logger *slog.Logger) (*S3Backend, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(cfg.MaxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to load AWS config: %w", err)
	}

	newClient := func() (*s3.Client, error) {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		}), nil
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}

	pool, err := NewConnectionPool(cfg.PoolSize, newClient)
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to create connection pool: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxRetries + 1
	retryCfg.RetryableErrors = append(retryCfg.RetryableErrors, scmfserrors.ErrCodeStorageRead)

	return &S3Backend{
		client:  client,
		pool:    pool,
		bucket:  cfg.Bucket,
		config:  cfg,
		logger:  logger,
		retryer: retry.New(retryCfg),
		breaker: circuit.NewCircuitBreaker("objectstore", circuit.Config{}),
	}, nil
}

func (b *S3Backend) treeKey(id ObjectID) string {
	return b.config.TreePrefix + id.String()
}

func (b *S3Backend) blobKey(id ObjectID) string {
	return b.config.BlobPrefix + id.String()
}

// GetRootTree fetches and decodes the tree stored at rootID, retrying
// transient storage-read failures per the backend's retry configuration.
func (b *S3Backend) GetRootTree(ctx context.Context, rootID ObjectID, fc *FetchContext) (*Tree, error) {
	var tree *Tree
	err := b.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		data, err := b.getObject(ctx, b.treeKey(rootID))
		if err != nil {
			return b.translateError(err, "GetRootTree", rootID.String())
		}

		var wire []wireEntry
		if err := cbor.Unmarshal(data, &wire); err != nil {
			return scmfserrors.NewError(scmfserrors.ErrCodeStorageRead, "corrupt tree object").
				WithComponent("objectstore").WithOperation("GetRootTree").WithCause(err)
		}

		fc.RecordTreeFetch()

		entries := make([]TreeEntry, len(wire))
		for i, w := range wire {
			entries[i] = TreeEntry{Name: w.Name, Type: EntryType(w.Type), ID: ObjectID(w.ID)}
		}
		tree = &Tree{ID: rootID, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// GetTreeEntryForRootID fetches the tree at rootID and returns the single
// entry matching entryType and basename.
func (b *S3Backend) GetTreeEntryForRootID(ctx context.Context, rootID ObjectID, entryType EntryType, basename string, fc *FetchContext) (TreeEntry, error) {
	tree, err := b.GetRootTree(ctx, rootID, fc)
	if err != nil {
		return TreeEntry{}, err
	}

	entry, ok := tree.EntryByName(basename)
	if !ok || entry.Type != entryType {
		return TreeEntry{}, scmfserrors.NewError(scmfserrors.ErrCodeObjectNotFound, "tree entry not found").
			WithComponent("objectstore").WithOperation("GetTreeEntryForRootID").
			WithDetail("basename", basename)
	}
	return entry, nil
}

// GetBlob fetches a blob's raw contents, retrying transient storage-read
// failures per the backend's retry configuration.
func (b *S3Backend) GetBlob(ctx context.Context, id ObjectID, fc *FetchContext) ([]byte, error) {
	var data []byte
	err := b.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		d, err := b.getObject(ctx, b.blobKey(id))
		if err != nil {
			return b.translateError(err, "GetBlob", id.String())
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	fc.RecordBlobFetch()
	return data, nil
}

// PutTree serializes entries and stores them content-addressed, returning
// the resulting id.
func (b *S3Backend) PutTree(ctx context.Context, entries []TreeEntry) (ObjectID, error) {
	wire := make([]wireEntry, len(entries))
	for i, e := range entries {
		wire[i] = wireEntry{Name: e.Name, Type: int(e.Type), ID: [32]byte(e.ID)}
	}

	data, err := cbor.Marshal(wire)
	if err != nil {
		return ObjectID{}, fmt.Errorf("objectstore: failed to encode tree: %w", err)
	}

	id := blake3.Sum256(data)
	if err := b.putObject(ctx, b.treeKey(id), data); err != nil {
		return ObjectID{}, b.translateError(err, "PutTree", ObjectID(id).String())
	}
	return id, nil
}

// PutBlob stores data content-addressed, returning the resulting id.
func (b *S3Backend) PutBlob(ctx context.Context, data []byte) (ObjectID, error) {
	id := blake3.Sum256(data)
	if err := b.putObject(ctx, b.blobKey(id), data); err != nil {
		return ObjectID{}, b.translateError(err, "PutBlob", ObjectID(id).String())
	}
	return id, nil
}

// getObject runs the S3 GetObject call through the backend's circuit
// breaker: a sustained run of failures trips it, so callers fail fast
// instead of piling up timed-out requests against a bucket that isn't
// answering.
func (b *S3Backend) getObject(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		client := b.pool.Get()
		defer b.pool.Put(client)

		result, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			b.recordError(err)
			return err
		}
		defer result.Body.Close()

		body, err := io.ReadAll(result.Body)
		if err != nil {
			b.recordError(err)
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.metrics.BytesDownloaded += int64(len(data))
	b.mu.Unlock()
	return data, nil
}

func (b *S3Backend) putObject(ctx context.Context, key string, data []byte) error {
	return b.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		client := b.pool.Get()
		defer b.pool.Put(client)

		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(b.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			b.recordError(err)
			return err
		}

		b.mu.Lock()
		b.metrics.BytesUploaded += int64(len(data))
		b.mu.Unlock()
		return nil
	})
}

func (b *S3Backend) recordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.Errors++
	b.metrics.LastError = err.Error()
	b.metrics.LastErrorAt = time.Now()
}

func (b *S3Backend) translateError(err error, operation, key string) *scmfserrors.ScmfsError {
	var notFound *s3types.NoSuchKey
	if errors.As(err, &notFound) {
		return scmfserrors.NewError(scmfserrors.ErrCodeObjectNotFound, "object not found").
			WithComponent("objectstore").WithOperation(operation).WithDetail("key", key).WithCause(err)
	}
	return scmfserrors.NewError(scmfserrors.ErrCodeStorageRead, "object store operation failed").
		WithComponent("objectstore").WithOperation(operation).WithDetail("key", key).WithCause(err)
}

// GetMetrics returns a snapshot of backend metrics.
func (b *S3Backend) GetMetrics() BackendMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// HealthCheck verifies bucket accessibility.
func (b *S3Backend) HealthCheck(ctx context.Context) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("objectstore: health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *S3Backend) Close() error {
	return b.pool.Close()
}
