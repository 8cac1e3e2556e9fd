package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"match-analyzer/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Source lists and reads raw payload files
type Source interface {
	List(kind storage.Kind) ([]string, error)
	Load(path string) ([]byte, error)
}

// Result counts what one Archive call did
type Result struct {
	Uploaded int
	Skipped  int   // already present in the bucket
	Bytes    int64 // compressed bytes uploaded
}

// Archiver copies the raw payload directory to S3 as gzipped objects
type Archiver struct {
	src         Source
	api         API
	bucket      string
	prefix      string
	concurrency int
}

// New creates an archiver writing objects under prefix in bucket
func New(src Source, api API, bucket, prefix string, concurrency int) *Archiver {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Archiver{
		src:         src,
		api:         api,
		bucket:      bucket,
		prefix:      prefix,
		concurrency: concurrency,
	}
}

// Key returns the object key for a local payload file
func (a *Archiver) Key(localPath string) string {
	return path.Join(a.prefix, filepath.Base(localPath)+".gz")
}

// Archive uploads every match and timeline file that is not yet in the
// bucket. Payload files are immutable, so an existing key is never rewritten.
func (a *Archiver) Archive(ctx context.Context) (*Result, error) {
	var files []string
	for _, kind := range []storage.Kind{storage.KindMatch, storage.KindTimeline} {
		paths, err := a.src.List(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
		}
		files = append(files, paths...)
	}

	existing, err := a.existingKeys(ctx)
	if err != nil {
		return nil, err
	}

	var uploaded, skipped, written atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, file := range files {
		key := a.Key(file)
		if existing[key] {
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			n, err := a.upload(ctx, file, key)
			if err != nil {
				return err
			}
			uploaded.Add(1)
			written.Add(n)
			return nil
		})
	}

	err = g.Wait()
	res := &Result{
		Uploaded: int(uploaded.Load()),
		Skipped:  int(skipped.Load()),
		Bytes:    written.Load(),
	}
	log.Printf("[Archive] %d uploaded, %d already archived (%d bytes)", res.Uploaded, res.Skipped, res.Bytes)
	return res, err
}

func (a *Archiver) existingKeys(ctx context.Context) (map[string]bool, error) {
	keys := make(map[string]bool)

	prefix := a.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(a.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("archive: list prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys[aws.ToString(obj.Key)] = true
		}
	}
	return keys, nil
}

func (a *Archiver) upload(ctx context.Context, file, key string) (int64, error) {
	payload, err := a.src.Load(file)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := Compress(&buf, bytes.NewReader(payload)); err != nil {
		return 0, fmt.Errorf("archive: compress %s: %w", file, err)
	}
	size := int64(buf.Len())

	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return 0, fmt.Errorf("archive: put object %s: %w", key, err)
	}
	return size, nil
}

// Compress gzips src into dst
func Compress(dst io.Writer, src io.Reader) error {
	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	return gzWriter.Close()
}
