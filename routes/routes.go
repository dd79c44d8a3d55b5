package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/auth"
	"github.com/phillip/parenting-hub-go/config"
	"github.com/phillip/parenting-hub-go/controllers"
	"github.com/phillip/parenting-hub-go/media"
	"github.com/phillip/parenting-hub-go/middleware"
	"github.com/phillip/parenting-hub-go/models"
	"github.com/phillip/parenting-hub-go/store"
)

// Handlers is everything the router mounts.
type Handlers struct {
	Events        *controllers.Resource[models.Event, *models.Event]
	Places        *controllers.Resource[models.Place, *models.Place]
	Professionals *controllers.Resource[models.Professional, *models.Professional]
	Products      *controllers.Resource[models.Product, *models.Product]
	ForumPosts    *controllers.Resource[models.ForumPost, *models.ForumPost]
	Users         *controllers.Resource[models.User, *models.User]
	Uploads       *controllers.Uploads

	// MediaBucket is set when images are kept in process and served here.
	MediaBucket *media.Memory
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, v auth.Verifier, admins *auth.AdminPolicy, h Handlers) {
	r.GET("/healthz", controllers.Healthz(cfg.Store.Driver, cfg.Media.Driver))
	if h.MediaBucket != nil {
		r.GET("/media/*key", controllers.ServeMedia(h.MediaBucket))
	}

	optional := middleware.OptionalAuth(v)
	required := middleware.AuthMiddleware(v)

	api := r.Group("/api")
	api.GET("/config/firebase", controllers.FirebaseConfig(cfg.Firebase))
	api.GET("/me", required, controllers.Me(admins))

	// public reads, admin writes
	public := api.Group("", optional)
	admin := api.Group("/admin", required, middleware.RequireAdmin(admins))

	mount(public, admin, "/events", h.Events)
	mount(public, admin, "/places", h.Places)
	mount(public, admin, "/professionals", h.Professionals)
	mount(public, admin, "/products", h.Products)
	mount(public, admin, "/forum-posts", h.ForumPosts)

	// signed-in users may start a thread or list something for sale
	api.POST("/forum-posts", required, h.ForumPosts.Submit())
	api.POST("/products", required, h.Products.Submit())

	users := admin.Group("/users")
	{
		users.GET("", h.Users.List())
		users.GET("/:id", h.Users.Get())
	}

	uploads := admin.Group("/uploads")
	{
		uploads.GET("/availability", h.Uploads.Availability())
		uploads.POST("/:folder", h.Uploads.Upload())
		uploads.DELETE("", h.Uploads.Delete())
	}
}

func mount[T any, P store.Document[T]](public, admin *gin.RouterGroup, path string, res *controllers.Resource[T, P]) {
	pub := public.Group(path)
	{
		pub.GET("", res.List())
		pub.GET("/stream", res.Stream())
		pub.GET("/:id", res.Get())
	}

	adm := admin.Group(path)
	{
		adm.POST("", res.Create())
		adm.PATCH("/:id", res.Update())
		adm.DELETE("/:id", res.Delete())
	}
}
