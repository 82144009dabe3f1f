package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

// FileSink writes matches to a local file. The file is replaced atomically,
// so a failed run never leaves a partial output behind.
type FileSink struct {
	path     string
	compress bool
}

// NewFileSink creates a file sink; paths ending in .zst are compressed.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, compress: strings.HasSuffix(path, compressedExt)}
}

// Location implements Sink.
func (s *FileSink) Location() string {
	return s.path
}

// Write implements Sink.
func (s *FileSink) Write(ctx context.Context, matches []partsearch.Record) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := encode(w, matches, s.compress); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}

	return nil
}
