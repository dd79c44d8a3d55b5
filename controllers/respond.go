// Package controllers holds the gin handlers of the content API.
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/utils"
)

// respondError writes err with the status and message the admin UI expects.
// Field errors are included for validation failures.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": apperr.UserMessage(err)}

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Errors
	}
	if code := apperr.CodeOf(err); code != apperr.CodeUnknown {
		body["code"] = code
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

// notModified sets the ETag and reports whether the client copy is current.
func notModified(c *gin.Context, id string, updatedAt time.Time) bool {
	etag := utils.GenerateETag(id, updatedAt)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	if !updatedAt.IsZero() {
		c.Header("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	}
	return false
}

func withTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), d)
}
