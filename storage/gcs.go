package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

var (
	gcsOnce   sync.Once
	gcsClient *gcs.Client
	gcsErr    error
)

func gcsHandle() (*gcs.Client, error) {
	gcsOnce.Do(func() {
		gcsClient, gcsErr = gcs.NewClient(context.Background())
	})
	return gcsClient, gcsErr
}

// openGCS stats the object once for its size and returns a Source whose
// reads are HTTP range requests. The pak trailer, index, and entry bodies
// are each a single bounded window, so an archive is readable without ever
// downloading the whole object.
func openGCS(ctx context.Context, bucket, object string) (*Source, error) {
	client, err := gcsHandle()
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	attrs, err := client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: gs://%s/%s: %w", bucket, object, err)
	}
	r := &gcsRange{ctx: ctx, bucket: bucket, object: object}
	return &Source{ReaderAt: r, Size: attrs.Size}, nil
}

// gcsRange reads one window of a GCS object per call.
type gcsRange struct {
	ctx    context.Context
	bucket string
	object string
}

func (g *gcsRange) ReadAt(p []byte, off int64) (int, error) {
	client, err := gcsHandle()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	rc, err := client.Bucket(g.bucket).Object(g.object).NewRangeReader(g.ctx, off, int64(len(p)))
	if err != nil {
		return 0, fmt.Errorf("gcs: range read gs://%s/%s at offset %d: %w", g.bucket, g.object, off, err)
	}
	defer rc.Close()
	n, err := io.ReadFull(rc, p)
	logger.Info("archive range read",
		"archive", "gs://"+g.bucket+"/"+g.object,
		"offset", off,
		"bytes", n,
		"duration", time.Since(start))
	return n, err
}

// listGCS returns the *.pak object names directly under the prefix,
// sorted. The delimiter keeps nested directories out of the listing, the
// way a local directory scan would.
func listGCS(ctx context.Context, bucket, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	client, err := gcsHandle()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	it := client.Bucket(bucket).Objects(ctx, &gcs.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs: list gs://%s/%s: %w", bucket, prefix, err)
		}
		if attrs.Prefix != "" {
			continue // nested directory
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if strings.HasSuffix(name, ".pak") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	logger.Info("archive listing",
		"prefix", "gs://"+bucket+"/"+prefix,
		"archives", len(names),
		"duration", time.Since(start))
	return names, nil
}
