package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/media"
	"github.com/phillip/parenting-hub-go/models"
	"github.com/phillip/parenting-hub-go/store"
)

// Resource serves one collection over HTTP.
type Resource[T any, P store.Document[T]] struct {
	gateway  *store.Gateway[T, P]
	uploader *media.Uploader
	timeout  time.Duration
	log      *slog.Logger
}

// NewResource wires a collection's gateway to the handlers. uploader may be
// nil for collections without images; timeout bounds each store call.
func NewResource[T any, P store.Document[T]](g *store.Gateway[T, P], uploader *media.Uploader, timeout time.Duration, logger *slog.Logger) *Resource[T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resource[T, P]{
		gateway:  g,
		uploader: uploader,
		timeout:  timeout,
		log:      logger.With(slog.String("collection", g.Collection())),
	}
}

// ---------------- LIST ----------------
func (r *Resource[T, P]) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := parseQuery[T](c)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := withTimeout(c, r.timeout)
		defer cancel()

		items, err := r.gateway.List(ctx, q)
		if err != nil {
			// Degrade to an empty list; the page still renders.
			_ = c.Error(err)
			c.JSON(http.StatusOK, gin.H{"data": items, "error": apperr.UserMessage(err)})
			return
		}

		if len(items) > 0 {
			latest := P(&items[0]).Base()
			for i := range items {
				if b := P(&items[i]).Base(); b.UpdatedAt.After(latest.UpdatedAt) {
					latest = b
				}
			}
			if notModified(c, fmt.Sprintf("%s:%d", latest.ID, len(items)), latest.UpdatedAt) {
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

// ---------------- GET ----------------
func (r *Resource[T, P]) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := withTimeout(c, r.timeout)
		defer cancel()

		item, err := r.gateway.GetByID(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		b := P(&item).Base()
		if notModified(c, b.ID, b.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

// ---------------- CREATE ----------------
// Create accepts a JSON document, or a multipart form with the document in
// "data" and an optional "image" file.
func (r *Resource[T, P]) Create() gin.HandlerFunc { return r.create(true) }

// Submit is Create for community members. Image URLs into this service's
// bucket are only accepted when uploaded with the same request, so a
// submission cannot claim another record's image.
func (r *Resource[T, P]) Submit() gin.HandlerFunc { return r.create(false) }

func (r *Resource[T, P]) create(trusted bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := readDocument(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var doc T
		if err := decodeStrict(raw, &doc); err != nil {
			respondError(c, err)
			return
		}
		if err := P(&doc).Validate(); err != nil {
			respondError(c, err)
			return
		}
		if !trusted {
			if err := r.rejectOwnedImages(&doc); err != nil {
				respondError(c, err)
				return
			}
		}

		// --- Upload the image first so the document is stored with its URL ---
		file, err := readImage(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var uploaded string
		if file != nil {
			setter, ok := any(P(&doc)).(models.ImageSetter)
			if !ok {
				respondError(c, apperr.NewValidationError(formImage, "is not supported for "+r.gateway.Collection()))
				return
			}
			uploaded, err = r.uploader.Upload(c.Request.Context(), *file)
			if err != nil {
				respondError(c, err)
				return
			}
			setter.SetPrimaryImage(uploaded)
		}

		ctx, cancel := withTimeout(c, r.timeout)
		defer cancel()

		id, err := r.gateway.Create(ctx, doc)
		if err != nil {
			if uploaded != "" {
				r.uploader.DeleteByURL(c.Request.Context(), uploaded)
			}
			respondError(c, err)
			return
		}

		created, err := r.gateway.GetByID(ctx, id)
		if err != nil {
			// Stored, but not readable back yet.
			P(&doc).Base().ID = id
			c.JSON(http.StatusCreated, gin.H{"id": id, "data": doc})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "data": created})
	}
}

func (r *Resource[T, P]) rejectOwnedImages(doc *T) error {
	for _, url := range imageURLs(P(doc)) {
		if r.uploader.Owns(url) {
			return apperr.NewValidationError(formImage, "must be uploaded with this request")
		}
	}
	return nil
}

func imageURLs(doc any) []string {
	switch d := doc.(type) {
	case models.ImageLister:
		return d.ImageURLs()
	case models.ImageHolder:
		if u := d.PrimaryImage(); u != "" {
			return []string{u}
		}
	}
	return nil
}

// ---------------- UPDATE ----------------
// Update applies a partial document. A multipart request may carry a new
// "image"; the previous image is removed once the document points at the
// new one.
func (r *Resource[T, P]) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		patch := store.Patch{}
		raw, err := readDocument(c)
		file, fileErr := readImage(c)
		switch {
		case fileErr != nil:
			respondError(c, fileErr)
			return
		case err != nil && file == nil:
			respondError(c, err)
			return
		case err == nil:
			if err := json.Unmarshal(raw, &patch); err != nil {
				respondError(c, jsonError(err))
				return
			}
		}

		var previous, uploaded string
		if file != nil {
			readCtx, cancelRead := withTimeout(c, r.timeout)
			current, err := r.gateway.GetByID(readCtx, id)
			cancelRead()
			if err != nil {
				respondError(c, err)
				return
			}
			setter, ok := any(P(&current)).(models.ImageSetter)
			if !ok {
				respondError(c, apperr.NewValidationError(formImage, "is not supported for "+r.gateway.Collection()))
				return
			}
			previous = setter.PrimaryImage()

			uploaded, err = r.uploader.Upload(c.Request.Context(), *file)
			if err != nil {
				respondError(c, err)
				return
			}
			setter.SetPrimaryImage(uploaded)
			for k, v := range models.FieldValues(&current, []string{setter.ImageField()}) {
				patch[k] = v
			}
		}

		// The upload has its own deadline; the write gets a fresh one.
		ctx, cancel := withTimeout(c, r.timeout)
		defer cancel()

		if err := r.gateway.Update(ctx, id, patch); err != nil {
			if uploaded != "" {
				r.uploader.DeleteByURL(c.Request.Context(), uploaded)
			}
			respondError(c, err)
			return
		}
		if previous != "" && previous != uploaded {
			r.uploader.DeleteByURL(c.Request.Context(), previous)
		}

		updated, err := r.gateway.GetByID(ctx, id)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"message": "updated", "id": id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "updated", "id": id, "data": updated})
	}
}

// ---------------- DELETE ----------------
// Delete removes the document and then its image, if this service stored it.
func (r *Resource[T, P]) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		ctx, cancel := withTimeout(c, r.timeout)
		defer cancel()

		var image string
		if current, err := r.gateway.GetByID(ctx, id); err == nil {
			if h, ok := any(P(&current)).(models.ImageHolder); ok {
				image = h.PrimaryImage()
			}
		} else if errors.Is(err, apperr.ErrNotFound) {
			respondError(c, err)
			return
		}

		if err := r.gateway.Delete(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		if image != "" {
			r.uploader.DeleteByURL(c.Request.Context(), image)
		}

		c.JSON(http.StatusOK, gin.H{"message": "deleted", "id": id})
	}
}

// ---------------- STREAM ----------------
// Stream pushes the full result set as a server-sent "snapshot" event on
// every change, and an "error" event when the live feed breaks.
func (r *Resource[T, P]) Stream() gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := parseQuery[T](c)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		updates := make(chan []T, 1)
		sub := r.gateway.Subscribe(ctx, q, func(items []T) {
			// Latest wins; a slow client skips intermediate snapshots.
			select {
			case <-updates:
			default:
			}
			updates <- items
		})
		defer sub.Unsubscribe()

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		var reported error
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Stream(func(w io.Writer) bool {
			select {
			case items := <-updates:
				reported = nil
				c.SSEvent("snapshot", gin.H{"data": items})
				return true
			case <-ticker.C:
				if err := sub.Err(); err != nil && !errors.Is(err, reported) {
					reported = err
					c.SSEvent("error", gin.H{"error": apperr.UserMessage(err)})
				} else {
					c.SSEvent("ping", time.Now().Unix())
				}
				return true
			case <-sub.Done():
				return false
			case <-ctx.Done():
				return false
			}
		})
		r.log.DebugContext(ctx, "stream closed")
	}
}
