package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/phillip/parenting-hub-go/apperr"
)

const cloudinaryHost = "res.cloudinary.com"

// Cloudinary stores images as Cloudinary assets. The public id is the object
// key without its extension.
type Cloudinary struct {
	cld       *cloudinary.Cloudinary
	cloudName string
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("cloudinary: %w", ErrStoreNotConfigured)
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, apperr.Configuration("cloudinary config error: %v", err)
	}
	return &Cloudinary{cld: cld, cloudName: cloudName}, nil
}

func (c *Cloudinary) Name() string { return "cloudinary" }

func (c *Cloudinary) Probe(ctx context.Context) error {
	res, err := c.cld.Admin.Ping(ctx)
	if err != nil {
		return apperr.Transport("cloudinary.ping", apperr.CodeUnavailable, err)
	}
	if res.Error.Message != "" {
		return cloudinaryError("cloudinary.ping", res.Error.Message)
	}
	return nil
}

func (c *Cloudinary) Put(ctx context.Context, key string, r io.Reader, _ int64, meta Metadata) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID: publicID(key),
		Context: api.CldAPIMap{
			"contentType":  meta.ContentType,
			"originalName": meta.OriginalName,
		},
	})
	if err != nil {
		return "", apperr.Transport("cloudinary.upload", apperr.CodeUnknown, fmt.Errorf("upload error: %w", err))
	}
	if res.Error.Message != "" {
		return "", cloudinaryError("cloudinary.upload", res.Error.Message)
	}
	return res.SecureURL, nil
}

func (c *Cloudinary) Remove(ctx context.Context, key string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID(key)})
	if err != nil {
		return apperr.Transport("cloudinary.destroy", apperr.CodeUnknown, fmt.Errorf("delete error: %w", err))
	}
	if res.Error.Message != "" {
		return cloudinaryError("cloudinary.destroy", res.Error.Message)
	}
	return nil
}

// KeyFromURL extracts the key from
// https://res.cloudinary.com/<cloud>/image/upload/v1234567890/events/abc123.jpg
func (c *Cloudinary) KeyFromURL(rawURL string) (string, bool) {
	return cloudinaryKey(c.cloudName, rawURL)
}

func cloudinaryKey(cloudName, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != cloudinaryHost {
		return "", false
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != cloudName || parts[1] != "image" || parts[2] != "upload" {
		return "", false
	}
	rest := parts[3:]
	if isVersion(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", false
	}
	return path.Join(rest...), true
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func publicID(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}

func cloudinaryError(op, msg string) error {
	m := strings.ToLower(msg)
	code := apperr.CodeUnknown
	switch {
	case strings.Contains(m, "api key"), strings.Contains(m, "api_key"),
		strings.Contains(m, "signature"), strings.Contains(m, "not allowed"):
		code = apperr.CodeUnauthorized
	case strings.Contains(m, "quota"), strings.Contains(m, "limit"):
		code = apperr.CodeQuotaExceeded
	case strings.Contains(m, "invalid image"), strings.Contains(m, "unsupported"),
		strings.Contains(m, "file size"):
		code = apperr.CodeInvalidFormat
	case strings.Contains(m, "disabled"), strings.Contains(m, "unknown cloud"):
		code = apperr.CodeNotEnabled
	}
	return apperr.Transport(op, code, fmt.Errorf("%s", msg))
}
