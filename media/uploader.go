package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/notify"
)

// DefaultTimeout is how long Upload waits for the object store.
const DefaultTimeout = 45 * time.Second

// Uploader writes images for one kind of owner into its folder of a bucket.
// A nil bucket makes every operation report ErrStoreNotConfigured.
type Uploader struct {
	bucket   Bucket
	folder   string
	timeout  time.Duration
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Uploader)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) { u.timeout = d }
}

func WithNotifier(n notify.Notifier) Option {
	return func(u *Uploader) { u.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) { u.log = l }
}

func NewUploader(bucket Bucket, folder string, opts ...Option) *Uploader {
	u := &Uploader{
		bucket:   bucket,
		folder:   strings.Trim(folder, "/"),
		timeout:  DefaultTimeout,
		notifier: notify.Nop,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.log = u.log.With(slog.String("folder", u.folder))
	return u
}

func (u *Uploader) Folder() string { return u.folder }

// CheckAvailability probes the object store. It never fails; problems are
// reported in the result.
func (u *Uploader) CheckAvailability(ctx context.Context) Availability {
	if err := u.available(ctx); err != nil {
		return unavailable(err)
	}
	return Availability{Available: true}
}

func (u *Uploader) available(ctx context.Context) error {
	if u == nil || u.bucket == nil {
		return ErrStoreNotConfigured
	}
	if err := u.bucket.Probe(ctx); err != nil {
		if errors.Is(err, apperr.ErrConfiguration) {
			return err
		}
		return apperr.Transport("media.probe", apperr.CodeUnknown, err)
	}
	return nil
}

// Validate checks the fixed upload policy. It makes no network call.
func Validate(f File) error {
	var errs []apperr.FieldError
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		errs = append(errs, apperr.FieldError{Field: "file", Message: "must be an image"})
	}
	if f.Size >= MaxFileSize {
		errs = append(errs, apperr.FieldError{Field: "file", Message: "must be smaller than 5 MB"})
	}
	if f.Size < 0 {
		errs = append(errs, apperr.FieldError{Field: "file", Message: "has an invalid size"})
	}
	if len(errs) > 0 {
		return apperr.NewValidationErrors(errs)
	}
	return nil
}

func (u *Uploader) Validate(f File) error { return Validate(f) }

// Key builds a fresh object key: {folder}/{unixMillis}_{token}{.ext}.
func (u *Uploader) Key(f File) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	name := fmt.Sprintf("%d_%s%s", u.now().UnixMilli(), token, f.Ext())
	if u.folder == "" {
		return name
	}
	return u.folder + "/" + name
}

type putResult struct {
	url string
	err error
}

// Upload validates f, checks the store and writes f under a new key. The
// write races the uploader timeout; on timeout the write is left running and
// a TimedOut error is returned.
func (u *Uploader) Upload(ctx context.Context, f File) (string, error) {
	if u == nil {
		if err := Validate(f); err != nil {
			return "", err
		}
		return "", ErrStoreNotConfigured
	}
	url, err := u.upload(ctx, f)
	if err != nil {
		u.notifier.Notify(ctx, notify.Failure("Upload", err))
		return "", err
	}
	return url, nil
}

func (u *Uploader) upload(ctx context.Context, f File) (string, error) {
	if err := Validate(f); err != nil {
		return "", err
	}
	if err := u.available(ctx); err != nil {
		return "", err
	}
	return u.put(ctx, f)
}

func (u *Uploader) put(ctx context.Context, f File) (string, error) {
	key := u.Key(f)
	meta := Metadata{ContentType: f.ContentType, OriginalName: f.Name}

	done := make(chan putResult, 1)
	go func() {
		url, err := u.bucket.Put(context.WithoutCancel(ctx), key, f.Body, f.Size, meta)
		if err != nil {
			u.log.Warn("object put failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		done <- putResult{url: url, err: err}
	}()

	timer := time.NewTimer(u.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return "", apperr.Transport("media.upload", apperr.CodeUnknown, res.err)
		}
		u.log.InfoContext(ctx, "image uploaded", slog.String("key", key), slog.Int64("size", f.Size))
		return res.url, nil
	case <-timer.C:
		u.log.WarnContext(ctx, "image upload timed out", slog.String("key", key), slog.Duration("after", u.timeout))
		return "", apperr.Timeout("media.upload", u.timeout)
	case <-ctx.Done():
		return "", apperr.Transport("media.upload", apperr.CodeCanceled, ctx.Err())
	}
}

// Owns reports whether rawURL points into the configured bucket.
func (u *Uploader) Owns(rawURL string) bool {
	if u == nil || u.bucket == nil {
		return false
	}
	_, ok := u.bucket.KeyFromURL(rawURL)
	return ok
}

// DeleteByURL removes the object behind rawURL. URLs of other hosts are
// ignored; failures are logged only.
func (u *Uploader) DeleteByURL(ctx context.Context, rawURL string) {
	if u == nil || u.bucket == nil || strings.TrimSpace(rawURL) == "" {
		return
	}
	key, ok := u.bucket.KeyFromURL(rawURL)
	if !ok {
		u.log.DebugContext(ctx, "skipping delete of foreign url", slog.String("url", rawURL))
		return
	}
	if err := u.bucket.Remove(ctx, key); err != nil {
		u.log.WarnContext(ctx, "image delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	u.log.InfoContext(ctx, "image deleted", slog.String("key", key))
}
