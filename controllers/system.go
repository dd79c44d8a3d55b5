package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/auth"
	"github.com/phillip/parenting-hub-go/config"
	"github.com/phillip/parenting-hub-go/media"
)

// FirebaseConfig serves the web SDK settings the browser initializes with.
// Missing values are listed so the admin UI can say what to set.
func FirebaseConfig(cfg config.FirebaseConfig) gin.HandlerFunc {
	full := config.Config{Firebase: cfg}
	missing := full.MissingFirebase()
	return func(c *gin.Context) {
		body := gin.H{"config": cfg}
		if len(missing) > 0 {
			body["missing"] = missing
		}
		c.JSON(http.StatusOK, body)
	}
}

// Me returns the signed-in actor and whether the admin surface is open to
// them.
func Me(policy *auth.AdminPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFromContext(c.Request.Context())
		if !ok {
			respondError(c, apperr.ErrAuthenticationRequired)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": actor, "isAdmin": policy.IsAdmin(actor)})
	}
}

// Healthz reports liveness and which drivers are in use.
func Healthz(storeDriver, mediaDriver string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"store":  storeDriver,
			"media":  mediaDriver,
		})
	}
}

// ServeMedia serves objects of the in-process bucket under /media/*key.
func ServeMedia(bucket *media.Memory) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		obj, ok := bucket.Get(key)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Data(http.StatusOK, obj.ContentType, obj.Data)
	}
}
