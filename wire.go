package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/phillip/parenting-hub-go/auth"
	"github.com/phillip/parenting-hub-go/config"
	"github.com/phillip/parenting-hub-go/controllers"
	"github.com/phillip/parenting-hub-go/media"
	"github.com/phillip/parenting-hub-go/models"
	"github.com/phillip/parenting-hub-go/notify"
	"github.com/phillip/parenting-hub-go/routes"
	"github.com/phillip/parenting-hub-go/store"
	"github.com/phillip/parenting-hub-go/utils"
)

type deps struct {
	backend  store.Backend
	verifier auth.Verifier
	admins   *auth.AdminPolicy
	handlers routes.Handlers
}

func (d *deps) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.backend.Close(ctx); err != nil {
		logger.Warn("closing store", slog.String("error", err.Error()))
	}
}

func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	var app *firebase.App
	if cfg.UsesFirebase() {
		var err error
		if app, err = newFirebaseApp(ctx, cfg.Firebase); err != nil {
			return nil, err
		}
	}

	backend, err := newBackend(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	verifier, err := newVerifier(ctx, cfg, app)
	if err != nil {
		_ = backend.Close(ctx)
		return nil, err
	}

	admins := auth.NewAdminPolicy(auth.ParseEmailList(cfg.Auth.AdminEmails))
	if admins.Size() == 0 {
		logger.Warn("ADMIN_EMAILS is empty; only tokens with the admin role can manage content")
	}

	notifier := newNotifier(cfg, logger)
	storeCfg := store.Config{
		Notifier: notifier,
		Logger:   logger,
		Retry: store.RetryPolicy{
			MaxRetries:      cfg.Store.ReadRetries,
			InitialInterval: cfg.Store.RetryInitial,
			MaxInterval:     cfg.Store.RetryMaxInterval,
		},
	}

	bucket, memBucket := newBucket(ctx, cfg, app, logger)
	uploader := func(folder string) *media.Uploader {
		return media.NewUploader(bucket, folder,
			media.WithTimeout(cfg.Media.UploadTimeout),
			media.WithNotifier(notifier),
			media.WithLogger(logger),
		)
	}
	events := uploader(media.FolderEvents)
	places := uploader(media.FolderPlaces)
	professionals := uploader(media.FolderProfessionals)
	products := uploader(media.FolderProducts)

	timeout := cfg.Server.RequestTimeout
	h := routes.Handlers{
		Events: controllers.NewResource(
			store.New[models.Event, *models.Event](backend, storeCfg), events, timeout, logger),
		Places: controllers.NewResource(
			store.New[models.Place, *models.Place](backend, storeCfg), places, timeout, logger),
		Professionals: controllers.NewResource(
			store.New[models.Professional, *models.Professional](backend, storeCfg), professionals, timeout, logger),
		Products: controllers.NewResource(
			store.New[models.Product, *models.Product](backend, storeCfg), products, timeout, logger),
		ForumPosts: controllers.NewResource(
			store.New[models.ForumPost, *models.ForumPost](backend, storeCfg), nil, timeout, logger),
		Users: controllers.NewResource(
			store.New[models.User, *models.User](backend, storeCfg), nil, timeout, logger),
		Uploads:     controllers.NewUploads(events, places, professionals, products),
		MediaBucket: memBucket,
	}

	return &deps{backend: backend, verifier: verifier, admins: admins, handlers: h}, nil
}

func newFirebaseApp(ctx context.Context, fc config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if fc.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(fc.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     fc.ProjectID,
		StorageBucket: fc.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}

func newBackend(ctx context.Context, cfg *config.Config, app *firebase.App) (store.Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		return store.ConnectMongo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDB)
	case config.DriverFirestore:
		return store.NewFirestoreFromApp(ctx, app)
	default:
		return store.NewMemory(), nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (auth.Verifier, error) {
	if cfg.Auth.Provider == config.AuthFirebase {
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth: %w", err)
		}
		return auth.NewFirebaseVerifier(client), nil
	}
	return auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
}

// newBucket returns a nil bucket when the object store cannot be set up.
// The service still starts; uploads then report the store as unavailable.
func newBucket(ctx context.Context, cfg *config.Config, app *firebase.App, logger *slog.Logger) (media.Bucket, *media.Memory) {
	mc := cfg.Media
	var (
		bucket media.Bucket
		err    error
	)
	switch mc.Driver {
	case config.MediaCloudinary:
		var b *media.Cloudinary
		if b, err = media.NewCloudinary(mc.CloudinaryCloudName, mc.CloudinaryAPIKey, mc.CloudinaryAPISecret); err == nil {
			bucket = b
		}
	case config.MediaFirebase:
		var b *media.Firebase
		if b, err = media.NewFirebase(ctx, app, cfg.Firebase.StorageBucket); err == nil {
			bucket = b
		}
	case config.MediaMinio:
		var b *media.Minio
		if b, err = media.NewMinio(media.MinioConfig{
			Endpoint:  mc.MinioEndpoint,
			AccessKey: mc.MinioAccessKey,
			SecretKey: mc.MinioSecretKey,
			Region:    mc.MinioRegion,
			UseSSL:    mc.MinioUseSSL,
			Bucket:    mc.MinioBucket,
			PublicURL: mc.MinioPublicURL,
		}); err == nil {
			bucket = b
		}
	case config.MediaMemory:
		mem := media.NewMemory(mc.PublicURL)
		return mem, mem
	case config.MediaNone:
		logger.Warn("image uploads disabled", slog.String("media_driver", mc.Driver))
		return nil, nil
	}
	if err != nil {
		logger.Warn("object store unavailable", slog.String("media_driver", mc.Driver), slog.String("error", err.Error()))
		return nil, nil
	}
	return bucket, nil
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogger(logger)}

	mailer := utils.NewMailer(utils.MailerConfig{
		APIURL: cfg.Mail.APIURL,
		APIKey: cfg.Mail.APIKey,
		From:   cfg.Mail.From,
		ToName: cfg.Mail.ToName,
	}, logger)
	recipients := auth.ParseEmailList(cfg.Mail.AlertEmails)
	if mailer.Configured() && len(recipients) > 0 {
		notifiers = append(notifiers, notify.NewMailer(mailer, recipients, logger))
	}
	return notify.Multi(notifiers...)
}
