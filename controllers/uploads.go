package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/media"
)

// Uploads serves the image endpoints used by the admin edit forms. The form
// keeps the returned URL and saves it with the document later.
type Uploads struct {
	folders map[string]*media.Uploader
}

func NewUploads(uploaders ...*media.Uploader) *Uploads {
	u := &Uploads{folders: make(map[string]*media.Uploader, len(uploaders))}
	for _, up := range uploaders {
		if up != nil {
			u.folders[up.Folder()] = up
		}
	}
	return u
}

// ---------------- AVAILABILITY ----------------
func (u *Uploads) Availability() gin.HandlerFunc {
	return func(c *gin.Context) {
		var up *media.Uploader
		for _, x := range u.folders {
			up = x
			break
		}
		c.JSON(http.StatusOK, up.CheckAvailability(c.Request.Context()))
	}
}

// ---------------- UPLOAD / REPLACE ----------------
// Upload stores the "image" file in the folder named by the path. With a
// "previous" form value the old image is removed once the new one is stored.
func (u *Uploads) Upload() gin.HandlerFunc {
	return func(c *gin.Context) {
		up, ok := u.folders[c.Param("folder")]
		if !ok {
			respondError(c, apperr.NewValidationError("folder", "is not an upload folder"))
			return
		}

		file, err := readImage(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if file == nil {
			respondError(c, apperr.NewValidationError(formImage, "is required"))
			return
		}

		rep, err := up.Replace(c.Request.Context(), strings.TrimSpace(c.PostForm("previous")), *file)
		if err != nil {
			_ = c.Error(err)
			c.JSON(apperr.HTTPStatus(err), gin.H{
				"error":  apperr.UserMessage(err),
				"url":    rep.URL,
				"stages": rep.Stages,
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"url":      rep.URL,
			"previous": rep.Previous,
			"stages":   rep.Stages,
		})
	}
}

// ---------------- DELETE ----------------
// Delete removes the image behind ?url=. URLs this service does not own are
// ignored.
func (u *Uploads) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Query("url"))
		if raw == "" {
			respondError(c, apperr.NewValidationError("url", "is required"))
			return
		}
		for _, up := range u.folders {
			if up.Owns(raw) {
				up.DeleteByURL(c.Request.Context(), raw)
				break
			}
		}
		c.Status(http.StatusNoContent)
	}
}
