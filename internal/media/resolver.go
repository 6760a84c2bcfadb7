// Package media resolves stored clip references to fetchable URLs. Seed
// clips are stored as object keys; when object storage is configured they
// are rewritten to presigned GET URLs, otherwise they pass through as-is.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Resolver presigns object keys against a MinIO-compatible store.
type Resolver struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	TTL       time.Duration
}

func NewResolver(opts Options) (*Resolver, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Resolver{client: client, bucket: opts.Bucket, ttl: ttl}, nil
}

// Resolve maps a stored src to a URL the client can fetch. Absolute URLs
// pass through untouched; object keys get a presigned GET URL. On a
// presign failure the raw key is returned so the feed still renders.
func (r *Resolver) Resolve(ctx context.Context, src string) string {
	if r == nil || isAbsolute(src) {
		return src
	}
	u, err := r.client.PresignedGetObject(ctx, r.bucket, src, r.ttl, nil)
	if err != nil {
		log.Warn().Err(err).Str("key", src).Msg("media: presign failed")
		return src
	}
	return u.String()
}

func isAbsolute(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
