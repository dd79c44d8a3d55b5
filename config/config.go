// Package config loads the service settings from the environment.
package config

import (
	"time"
)

// Store drivers.
const (
	DriverMongo     = "mongo"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// Media drivers.
const (
	MediaCloudinary = "cloudinary"
	MediaFirebase   = "firebase"
	MediaMinio      = "minio"
	MediaMemory     = "memory"
	MediaNone       = "none"
)

// Auth providers.
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	Store    StoreConfig    `yaml:"store"`
	Media    MediaConfig    `yaml:"media"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	GinMode         string        `yaml:"gin_mode"         env:"GIN_MODE"                env-default:"release"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"90s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// RequestTimeout bounds store calls made on behalf of a request.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string        `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"http://localhost:3000"`
	AllowCredentials bool          `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           time.Duration `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"12h"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver   string `yaml:"driver"    env:"STORE_DRIVER" env-default:"memory"`
	MongoURI string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDB  string `yaml:"mongo_db"  env:"MONGO_DB"     env-default:"parenting_hub"`

	ReadRetries      int           `yaml:"read_retries"       env:"STORE_READ_RETRIES"       env-default:"3"`
	RetryInitial     time.Duration `yaml:"retry_initial"      env:"STORE_RETRY_INITIAL"      env-default:"200ms"`
	RetryMaxInterval time.Duration `yaml:"retry_max_interval" env:"STORE_RETRY_MAX_INTERVAL" env-default:"2s"`
}

// MediaConfig selects and configures the object store for images.
type MediaConfig struct {
	Driver        string        `yaml:"driver"         env:"MEDIA_DRIVER"   env-default:"memory"`
	UploadTimeout time.Duration `yaml:"upload_timeout" env:"UPLOAD_TIMEOUT" env-default:"45s"`

	// PublicURL is the base of URLs handed out by the memory driver.
	PublicURL string `yaml:"public_url" env:"MEDIA_PUBLIC_URL" env-default:"http://localhost:8080/media"`

	CloudinaryCloudName string `yaml:"cloudinary_cloud_name" env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `yaml:"cloudinary_api_key"    env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `yaml:"cloudinary_api_secret" env:"CLOUDINARY_API_SECRET"`

	MinioEndpoint  string `yaml:"minio_endpoint"   env:"MINIO_ENDPOINT"`
	MinioAccessKey string `yaml:"minio_access_key" env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `yaml:"minio_secret_key" env:"MINIO_SECRET_KEY"`
	MinioRegion    string `yaml:"minio_region"     env:"MINIO_REGION"     env-default:"us-east-1"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"    env:"MINIO_USE_SSL"    env-default:"false"`
	MinioBucket    string `yaml:"minio_bucket"     env:"MINIO_BUCKET"     env-default:"images"`
	MinioPublicURL string `yaml:"minio_public_url" env:"MINIO_PUBLIC_URL"`
}

// FirebaseConfig holds the Firebase project settings. The first six values
// are the web SDK configuration also served to the browser.
type FirebaseConfig struct {
	APIKey            string `yaml:"api_key"             env:"FIREBASE_API_KEY"             json:"apiKey"`
	AuthDomain        string `yaml:"auth_domain"         env:"FIREBASE_AUTH_DOMAIN"         json:"authDomain"`
	ProjectID         string `yaml:"project_id"          env:"FIREBASE_PROJECT_ID"          json:"projectId"`
	StorageBucket     string `yaml:"storage_bucket"      env:"FIREBASE_STORAGE_BUCKET"      json:"storageBucket"`
	MessagingSenderID string `yaml:"messaging_sender_id" env:"FIREBASE_MESSAGING_SENDER_ID" json:"messagingSenderId"`
	AppID             string `yaml:"app_id"              env:"FIREBASE_APP_ID"              json:"appId"`

	// CredentialsFile is a service account key. Empty means application
	// default credentials.
	CredentialsFile string `yaml:"credentials_file" env:"FIREBASE_CREDENTIALS_FILE" json:"-"`
}

// AuthConfig holds token verification and admin policy settings.
type AuthConfig struct {
	Provider  string `yaml:"provider"   env:"AUTH_PROVIDER" env-default:"jwt"`
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"    env-default:"parenting-hub"`

	// AdminEmails is a comma-separated allowlist.
	AdminEmails string `yaml:"admin_emails" env:"ADMIN_EMAILS"`
}

// MailConfig holds ZeptoMail settings for failure alerts.
type MailConfig struct {
	APIURL string `yaml:"api_url" env:"ZEPTO_API_URL" env-default:"https://api.zeptomail.com/v1.1/email"`
	APIKey string `yaml:"api_key" env:"ZEPTO_API_KEY"`
	From   string `yaml:"from"    env:"EMAIL_FROM"`
	ToName string `yaml:"to_name" env:"EMAIL_TO_NAME" env-default:"Admin"`

	// AlertEmails receive write-failure notifications. Comma-separated.
	AlertEmails string `yaml:"alert_emails" env:"ALERT_EMAILS"`
}
