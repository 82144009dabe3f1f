// Package sink persists the final match list.
package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

// Sink receives the ordered match list of a successful run.
type Sink interface {
	Write(ctx context.Context, matches []partsearch.Record) error
	Location() string
}

// compressedExt marks outputs that are written zstd-compressed.
const compressedExt = ".zst"

// Open picks a sink for location: s3://bucket/key goes to object storage,
// anything else is a local file path.
func Open(location string, s3 S3Config) (Sink, error) {
	if bucket, key, ok := ParseObjectURL(location); ok {
		client, err := NewMinioClient(s3)
		if err != nil {
			return nil, err
		}
		return NewObjectSink(client, bucket, key).WithPrefix(s3.Prefix), nil
	}
	if strings.HasPrefix(location, objectScheme) {
		return nil, fmt.Errorf("invalid object location %q, want s3://bucket/key", location)
	}

	return NewFileSink(location), nil
}

// encode writes matches as canonical record lines, zstd-compressed if asked.
func encode(w io.Writer, matches []partsearch.Record, compress bool) error {
	if !compress {
		_, err := w.Write(partsearch.EncodeLines(matches))
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(partsearch.EncodeLines(matches)); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
