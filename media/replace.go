package media

import (
	"context"

	"github.com/phillip/parenting-hub-go/notify"
)

// Stage is a step of the replace flow used by edit forms.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageValidating           Stage = "validating"
	StageCheckingAvailability Stage = "checking-availability"
	StageUploading            Stage = "uploading"
	StageUploaded             Stage = "uploaded"
	StageDeletingPrevious     Stage = "deleting-previous"
)

// Replacement is the outcome of Replace.
type Replacement struct {
	URL string
	// Previous is set when the old image was scheduled for removal.
	Previous string
	Stages   []Stage
}

// Replace uploads f and, once that succeeded, removes previousURL if it
// differs from the new one. On any failure the previous URL is returned
// untouched together with the error.
func (u *Uploader) Replace(ctx context.Context, previousURL string, f File) (Replacement, error) {
	r := Replacement{URL: previousURL}
	step := func(s Stage) { r.Stages = append(r.Stages, s) }
	fail := func(err error) (Replacement, error) {
		step(StageIdle)
		r.URL = previousURL
		r.Previous = ""
		return r, err
	}

	step(StageValidating)
	if err := Validate(f); err != nil {
		return fail(u.notifyFailure(ctx, err))
	}

	step(StageCheckingAvailability)
	if err := u.available(ctx); err != nil {
		return fail(u.notifyFailure(ctx, err))
	}

	step(StageUploading)
	url, err := u.put(ctx, f)
	if err != nil {
		return fail(u.notifyFailure(ctx, err))
	}
	step(StageUploaded)
	r.URL = url

	if previousURL != "" && previousURL != url {
		step(StageDeletingPrevious)
		u.DeleteByURL(ctx, previousURL)
		r.Previous = previousURL
	}
	step(StageIdle)
	return r, nil
}

func (u *Uploader) notifyFailure(ctx context.Context, err error) error {
	if u != nil {
		u.notifier.Notify(ctx, notify.Failure("Upload", err))
	}
	return err
}
