package ginserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"covach/internal/infra/config"
	"covach/internal/infra/obs"
)

type ReservationHTTP interface {
	Create(c *gin.Context)
	Approve(c *gin.Context)
	Decline(c *gin.Context)
	Cancel(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Events(c *gin.Context)
}

type SearchHTTP interface {
	Search(c *gin.Context)
}

type Handlers struct {
	Reservation ReservationHTTP
	Search      SearchHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Actor-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Reservation != nil {
		api.POST("/reservations", h.Reservation.Create)
		api.GET("/reservations", h.Reservation.List)
		api.GET("/reservations/:id", h.Reservation.Get)
		api.GET("/reservations/:id/events", h.Reservation.Events)
		api.POST("/reservations/:id/approve", h.Reservation.Approve)
		api.POST("/reservations/:id/decline", h.Reservation.Decline)
		api.POST("/reservations/:id/cancel", h.Reservation.Cancel)
	}
	if h.Search != nil {
		api.GET("/search", h.Search.Search)
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func configureGinMode(env string) string {
	switch env {
	case "dev", "local", "test":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
