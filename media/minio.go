package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/phillip/parenting-hub-go/apperr"
)

// MinioConfig describes an S3-compatible object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	// PublicURL is the base objects are served from. Defaults to the
	// endpoint.
	PublicURL string
}

func (c MinioConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("minio: %w", ErrStoreNotConfigured)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("minio: %w", ErrNoBucket)
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return apperr.Configuration("minio: access key and secret key are required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return apperr.Configuration("minio: endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

func (c MinioConfig) baseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.Endpoint
}

// Minio stores images in a MinIO or other S3-compatible bucket.
type Minio struct {
	client *minio.Client
	cfg    MinioConfig
}

func NewMinio(cfg MinioConfig) (*Minio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperr.Configuration("minio client: %v", err)
	}
	return &Minio{client: client, cfg: cfg}, nil
}

func (m *Minio) Name() string { return "minio" }

func (m *Minio) Probe(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return minioError("minio.probe", err)
	}
	if !exists {
		return fmt.Errorf("minio %q: %w", m.cfg.Bucket, ErrNoBucket)
	}
	return nil
}

func (m *Minio) Put(ctx context.Context, key string, r io.Reader, size int64, meta Metadata) (string, error) {
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		UserMetadata: map[string]string{"original-name": meta.OriginalName},
	})
	if err != nil {
		return "", minioError("minio.put", err)
	}
	return minioObjectURL(m.cfg, key), nil
}

func (m *Minio) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return minioError("minio.remove", err)
	}
	return nil
}

func (m *Minio) KeyFromURL(rawURL string) (string, bool) {
	return minioKey(m.cfg, rawURL)
}

func minioObjectURL(cfg MinioConfig, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return cfg.baseURL() + "/" + url.PathEscape(cfg.Bucket) + "/" + strings.Join(segs, "/")
}

func minioKey(cfg MinioConfig, rawURL string) (string, bool) {
	prefix := cfg.baseURL() + "/" + url.PathEscape(cfg.Bucket) + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func minioError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return apperr.Transport(op, apperr.CodeCanceled, err)
	}
	resp := minio.ToErrorResponse(err)
	code := apperr.CodeUnknown
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		code = apperr.CodeUnauthorized
	case "NoSuchBucket", "NotImplemented":
		code = apperr.CodeNotEnabled
	case "QuotaExceeded", "XMinioAdminBucketQuotaExceeded", "XMinioStorageFull":
		code = apperr.CodeQuotaExceeded
	case "InvalidArgument", "EntityTooLarge", "InvalidObjectName":
		code = apperr.CodeInvalidFormat
	case "SlowDown", "XMinioServerNotInitialized":
		code = apperr.CodeUnavailable
	default:
		if resp.StatusCode != 0 {
			code = httpStatusCode(resp.StatusCode)
		}
	}
	return apperr.Transport(op, code, err)
}
