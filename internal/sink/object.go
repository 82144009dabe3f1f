package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

const objectScheme = "s3://"

// S3Config holds the connection settings for S3-compatible storage.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// NewMinioClient connects to the configured endpoint. Empty keys mean anonymous access.
func NewMinioClient(cfg S3Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object sink: no endpoint configured")
	}

	opts := &minio.Options{
		Secure: cfg.Secure,
		Region: cfg.Region,
	}
	if cfg.AccessKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("object sink: %w", err)
	}
	return client, nil
}

// ParseObjectURL splits s3://bucket/key. ok is false for anything else.
func ParseObjectURL(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, objectScheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// ObjectSink uploads matches as one object.
type ObjectSink struct {
	client *minio.Client
	bucket string
	key    string
}

// NewObjectSink creates an object sink. prefix, if any, is already part of key.
func NewObjectSink(client *minio.Client, bucket, key string) *ObjectSink {
	return &ObjectSink{client: client, bucket: bucket, key: key}
}

// WithPrefix returns a copy of s whose key lives under prefix.
func (s *ObjectSink) WithPrefix(prefix string) *ObjectSink {
	if prefix == "" {
		return s
	}
	return &ObjectSink{client: s.client, bucket: s.bucket, key: path.Join(prefix, s.key)}
}

// Location implements Sink.
func (s *ObjectSink) Location() string {
	return objectScheme + s.bucket + "/" + s.key
}

// Write implements Sink.
func (s *ObjectSink) Write(ctx context.Context, matches []partsearch.Record) error {
	var buf bytes.Buffer
	if err := encode(&buf, matches, strings.HasSuffix(s.key, compressedExt)); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("upload %s: %w", s.Location(), err)
	}

	return nil
}
