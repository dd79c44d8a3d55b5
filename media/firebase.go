package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/phillip/parenting-hub-go/apperr"
)

const firebaseDownloadHost = "firebasestorage.googleapis.com"

// Firebase stores images in the default Cloud Storage bucket of a Firebase
// app and hands out token-protected download URLs.
type Firebase struct {
	bucket *gcs.BucketHandle
	name   string
}

// NewFirebase opens the app's default bucket. name must be the bucket the app
// was configured with.
func NewFirebase(ctx context.Context, app *firebase.App, name string) (*Firebase, error) {
	if app == nil {
		return nil, fmt.Errorf("firebase storage: %w", ErrStoreNotConfigured)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage: %w: %v", ErrStoreNotConfigured, err)
	}
	if name == "" {
		return nil, fmt.Errorf("firebase storage: %w", ErrNoBucket)
	}
	h, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase storage: %w: %v", ErrNoBucket, err)
	}
	return &Firebase{bucket: h, name: name}, nil
}

func (f *Firebase) Name() string { return "firebase" }

func (f *Firebase) Probe(ctx context.Context) error {
	if _, err := f.bucket.Attrs(ctx); err != nil {
		return gcsError("firebase.probe", err)
	}
	return nil
}

func (f *Firebase) Put(ctx context.Context, key string, r io.Reader, _ int64, meta Metadata) (string, error) {
	token := uuid.NewString()
	w := f.bucket.Object(key).NewWriter(ctx)
	w.ContentType = meta.ContentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
		"originalName":                  meta.OriginalName,
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", gcsError("firebase.put", err)
	}
	if err := w.Close(); err != nil {
		return "", gcsError("firebase.put", err)
	}
	return firebaseDownloadURL(f.name, key, token), nil
}

func (f *Firebase) Remove(ctx context.Context, key string) error {
	err := f.bucket.Object(key).Delete(ctx)
	if err == nil || errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return gcsError("firebase.delete", err)
}

func (f *Firebase) KeyFromURL(rawURL string) (string, bool) {
	return firebaseKey(f.name, rawURL)
}

func firebaseDownloadURL(bucket, key, token string) string {
	return fmt.Sprintf("https://%s/v0/b/%s/o/%s?alt=media&token=%s",
		firebaseDownloadHost, bucket, url.PathEscape(key), token)
}

// firebaseKey reads the escaped object path that follows /o/ in a download
// URL of bucket.
func firebaseKey(bucket, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != firebaseDownloadHost {
		return "", false
	}
	prefix := "/v0/b/" + bucket + "/o/"
	escaped := u.EscapedPath()
	if !strings.HasPrefix(escaped, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(escaped, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func gcsError(op string, err error) error {
	code := apperr.CodeUnknown
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, context.Canceled):
		code = apperr.CodeCanceled
	case errors.Is(err, gcs.ErrBucketNotExist):
		code = apperr.CodeNotEnabled
	case errors.As(err, &gerr):
		code = httpStatusCode(gerr.Code)
	}
	return apperr.Transport(op, code, err)
}

func httpStatusCode(status int) apperr.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.CodeUnauthorized
	case http.StatusTooManyRequests, http.StatusInsufficientStorage:
		return apperr.CodeQuotaExceeded
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return apperr.CodeInvalidFormat
	case http.StatusNotFound, http.StatusNotImplemented:
		return apperr.CodeNotEnabled
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return apperr.CodeUnavailable
	}
	return apperr.CodeUnknown
}
