package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS keeps the archive in a bucket:
//
//	text_archive/{CODE}/{CODE}_{TS}_log.json
//	audio/{CODE}/{CODE}_{TS}_analysis.mp3
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string

	// Signing identity for SignedURL; detected from the client
	// credentials when empty.
	GoogleAccessID string
	PrivateKey     []byte
}

// NewGCS opens bucket with credentialsFile, or application default credentials when empty.
func NewGCS(ctx context.Context, bucket, credentialsFile string, opts ...option.ClientOption) (*GCS, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func objectPrefix(kind Kind, code string) string {
	if kind == KindLog {
		return path.Join("text_archive", code) + "/"
	}
	return path.Join("audio", code) + "/"
}

func objectKey(kind Kind, code, name string) string {
	return objectPrefix(kind, code) + name
}

func contentType(kind Kind) string {
	if kind == KindAudio {
		return "audio/mpeg"
	}
	return "application/json; charset=utf-8"
}

func (g *GCS) List(ctx context.Context, kind Kind, code string) ([]string, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	prefix := objectPrefix(kind, code)
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", g.name, prefix, err)
		}
		name := path.Base(attrs.Name)
		if n, err := ParseName(name); err == nil && n.Kind == kind && n.Code == code {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *GCS) Read(ctx context.Context, kind Kind, code, name string) ([]byte, error) {
	if err := checkName(kind, code, name); err != nil {
		return nil, err
	}
	r, err := g.bucket.Object(objectKey(kind, code, name)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("opening gs://%s/%s: %w", g.name, objectKey(kind, code, name), err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Write uploads data. The object only becomes visible once Close succeeds.
func (g *GCS) Write(ctx context.Context, kind Kind, code, name string, data []byte) error {
	if err := checkName(kind, code, name); err != nil {
		return err
	}
	w := g.bucket.Object(objectKey(kind, code, name)).NewWriter(ctx)
	w.ContentType = contentType(kind)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// SignedURL returns a V4 GET URL valid for ttl.
func (g *GCS) SignedURL(kind Kind, code, name string, ttl time.Duration) (string, error) {
	if err := checkName(kind, code, name); err != nil {
		return "", err
	}
	return g.bucket.SignedURL(objectKey(kind, code, name), &storage.SignedURLOptions{
		GoogleAccessID: g.GoogleAccessID,
		PrivateKey:     g.PrivateKey,
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(ttl),
	})
}
