package config

import (
	"slices"
	"strings"

	"github.com/phillip/parenting-hub-go/apperr"
)

// Validate checks the loaded configuration. Load calls it automatically.
func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverMongo, DriverFirestore, DriverMemory}, c.Store.Driver) {
		return apperr.Configuration("STORE_DRIVER must be one of mongo, firestore, memory (got %q)", c.Store.Driver)
	}
	if c.Store.Driver == DriverMongo && c.Store.MongoURI == "" {
		return apperr.Configuration("MONGO_URI is required when STORE_DRIVER=mongo")
	}
	if c.Store.Driver == DriverFirestore && c.Firebase.ProjectID == "" {
		return apperr.Configuration("FIREBASE_PROJECT_ID is required when STORE_DRIVER=firestore")
	}
	if c.Store.ReadRetries < 0 {
		return apperr.Configuration("STORE_READ_RETRIES must be >= 0 (got %d)", c.Store.ReadRetries)
	}

	if !slices.Contains([]string{MediaCloudinary, MediaFirebase, MediaMinio, MediaMemory, MediaNone}, c.Media.Driver) {
		return apperr.Configuration("MEDIA_DRIVER must be one of cloudinary, firebase, minio, memory, none (got %q)", c.Media.Driver)
	}
	if c.Media.UploadTimeout <= 0 {
		return apperr.Configuration("UPLOAD_TIMEOUT must be positive")
	}

	switch c.Auth.Provider {
	case AuthJWT:
		if len(c.Auth.JWTSecret) < 32 {
			return apperr.Configuration("JWT_SECRET must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
		}
	case AuthFirebase:
		if c.Firebase.ProjectID == "" {
			return apperr.Configuration("FIREBASE_PROJECT_ID is required when AUTH_PROVIDER=firebase")
		}
	default:
		return apperr.Configuration("AUTH_PROVIDER must be jwt or firebase (got %q)", c.Auth.Provider)
	}
	return nil
}

// MissingFirebase lists the web SDK values that are not set. They are only
// needed once a Firebase-backed driver or the browser SDK uses them.
func (c *Config) MissingFirebase() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("FIREBASE_API_KEY", c.Firebase.APIKey)
	check("FIREBASE_AUTH_DOMAIN", c.Firebase.AuthDomain)
	check("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)
	check("FIREBASE_STORAGE_BUCKET", c.Firebase.StorageBucket)
	check("FIREBASE_MESSAGING_SENDER_ID", c.Firebase.MessagingSenderID)
	check("FIREBASE_APP_ID", c.Firebase.AppID)
	return missing
}

// UsesFirebase reports whether any driver needs a Firebase app.
func (c *Config) UsesFirebase() bool {
	return c.Store.Driver == DriverFirestore || c.Media.Driver == MediaFirebase || c.Auth.Provider == AuthFirebase
}
