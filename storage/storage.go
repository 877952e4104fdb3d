// Package storage opens pak archives from local paths and Google Cloud
// Storage paths (gs://bucket/object), and discovers the archives a game
// directory contains. A Source is exactly what pak.Open consumes:
// random-access bytes plus their size.
package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var logger = slog.New(slog.DiscardHandler)

// SetLogger installs a logger for request and latency logging. By default
// nothing is logged.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Source is an open archive: random-access bytes, their size, and the
// handle to release when done. The ReaderAt is safe for concurrent use, so
// parallel extraction needs no extra handles.
type Source struct {
	io.ReaderAt
	Size int64

	release func()
}

// Close releases the underlying handle.
func (s *Source) Close() {
	if s.release != nil {
		s.release()
	}
}

// Open opens the archive at path, local or gs://.
func Open(ctx context.Context, path string) (*Source, error) {
	if bucket, object, ok := ParseGCSPath(path); ok {
		return openGCS(ctx, bucket, object)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Source{ReaderAt: f, Size: fi.Size(), release: func() { f.Close() }}, nil
}

// List returns the names of the *.pak archives directly under dir (local
// or gs://), sorted into lexical mount order so patch archives follow the
// bases they modify.
func List(ctx context.Context, dir string) ([]string, error) {
	if bucket, prefix, ok := ParseGCSPath(dir); ok {
		return listGCS(ctx, bucket, prefix)
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".pak") {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ParseGCSPath parses a GCS path of the form gs://bucket/object and returns
// the bucket and object. The object may be empty if the path refers to a
// bucket root.
func ParseGCSPath(path string) (bucket, object string, ok bool) {
	after, found := strings.CutPrefix(path, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, _ = strings.Cut(after, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, object, true
}

// JoinPath joins a base path with sub-path elements, correctly handling
// both local filesystem paths and GCS paths (gs://bucket/prefix).
func JoinPath(base string, elems ...string) string {
	if bucket, object, ok := ParseGCSPath(base); ok {
		parts := make([]string, 0, len(elems)+1)
		if object != "" {
			parts = append(parts, object)
		}
		parts = append(parts, elems...)
		return "gs://" + bucket + "/" + strings.Join(parts, "/")
	}
	return filepath.Join(append([]string{base}, elems...)...)
}
