package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/config"
	"blogicum/controllers"
	"blogicum/middleware"
	"blogicum/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log and recovery through zap; fall back to the default recovery
	// if the file logger cannot be created.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Feeds and detail pages change shape with the viewer, so identity is
	// resolved for every request; only mutating routes demand it.
	r.Use(middleware.Identify())

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET(middleware.LoginPath, controllers.LoginPage)

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db)
	commentController := controllers.NewCommentController(db)
	profileController := controllers.NewProfileController(db)

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimit())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authController.Logout)
	authGroup.GET("/me", authController.Me)

	// Public read surface.
	r.GET("/", postController.Index)
	r.GET("/posts/:id/", postController.Detail)
	r.GET("/category/:slug/", postController.Category)
	r.GET("/profile/:username/", profileController.Show)

	// Mutations require a caller; anonymous users are bounced to /login.
	protected := r.Group("")
	protected.Use(middleware.LoginRequired(), middleware.RateLimit())
	protected.GET("/posts/create/", postController.NewForm)
	protected.POST("/posts/create/", postController.Create)
	protected.GET("/posts/:id/edit/", postController.EditForm)
	protected.POST("/posts/:id/edit/", postController.Update)
	protected.POST("/posts/:id/delete/", postController.Delete)
	protected.GET("/profile/edit/:username/", profileController.EditForm)
	protected.POST("/profile/edit/:username/", profileController.Update)
	protected.POST("/:id/comment/", commentController.Create)
	protected.POST("/posts/:id/edit_comment/:pk/", commentController.Update)
	protected.POST("/posts/:id/delete_comment/:pk/", commentController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
