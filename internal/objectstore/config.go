package objectstore

import "time"

// Config configures the S3-compatible backend used to fetch trees and
// blobs. Adapted from the teacher's storage config, with the tier/pricing/
// cost-optimization fields dropped: a content-addressed object store has no
// storage-tier concept.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	MaxRetries     int           `yaml:"max_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PoolSize       int           `yaml:"pool_size"`

	// TreePrefix and BlobPrefix namespace the two object kinds within the
	// bucket, since both are addressed by a raw content hash and would
	// otherwise collide if a tree and a blob happened to share bytes.
	TreePrefix string `yaml:"tree_prefix"`
	BlobPrefix string `yaml:"blob_prefix"`
}

// NewDefaultConfig returns sensible defaults for local development against
// an S3-compatible endpoint (e.g. MinIO).
func NewDefaultConfig() *Config {
	return &Config{
		Region:         "us-east-1",
		MaxRetries:     3,
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		PoolSize:       8,
		TreePrefix:     "trees/",
		BlobPrefix:     "blobs/",
	}
}
