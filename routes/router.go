package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/convoyapp/convoy/config"
	"github.com/convoyapp/convoy/controllers"
	"github.com/convoyapp/convoy/middleware"
	"github.com/convoyapp/convoy/utils"
)

// SetupRouter wires the full HTTP surface onto a gin engine.
func SetupRouter(db *gorm.DB, mailer utils.Mailer) *gin.Engine {
	cfg := config.Get()
	gin.SetMode(cfg.GinMode)

	router := gin.New()

	ginLogger, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		ginLogger = utils.Logger
	}
	router.Use(ginzap.Ginzap(ginLogger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(ginLogger, true))

	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	userCtrl := controllers.NewUserController(db, mailer)
	postCtrl := controllers.NewPostController(db)
	musicCtrl := controllers.NewMusicController(db)
	socialCtrl := controllers.NewSocialAuthController(db)

	api := router.Group("/api")

	users := api.Group("/users")
	{
		users.POST("", middleware.RateLimitMiddleware(), userCtrl.Register)
		users.POST("/login", middleware.RateLimitMiddleware(), userCtrl.Login)
		users.POST("/forgotPassword", middleware.RateLimitMiddleware(), userCtrl.ForgotPassword)
		users.PUT("/resetPassword/:token", middleware.RateLimitMiddleware(), userCtrl.ResetPassword)

		authed := users.Group("", middleware.AuthRequired(db))
		{
			authed.GET("/profile", userCtrl.Profile)
			authed.PUT("/profile", userCtrl.UpdateProfile)
			authed.PUT("/follow", userCtrl.Follow)
			authed.PUT("/unfollow", userCtrl.Unfollow)
			authed.GET("/:id", userCtrl.GetUser)

			admin := authed.Group("", middleware.AdminRequired())
			{
				admin.GET("", userCtrl.ListUsers)
				admin.POST("/add", userCtrl.AddUser)
				admin.PUT("/:id", userCtrl.UpdateUser)
				admin.DELETE("/:id", userCtrl.DeleteUser)
			}
		}
	}

	posts := api.Group("/posts")
	{
		posts.GET("", postCtrl.ListPosts)
		posts.GET("/:id", postCtrl.GetPost)
		posts.GET("/:id/comment", postCtrl.ListComments)

		authed := posts.Group("", middleware.AuthRequired(db))
		{
			authed.POST("", postCtrl.CreatePost)
			authed.GET("/user", postCtrl.ListMyPosts)
			authed.PUT("/:id", postCtrl.UpdatePost)
			authed.DELETE("/:id", postCtrl.DeletePost)

			authed.POST("/:id/comment", postCtrl.CreateComment)
			authed.DELETE("/:id/comment/:commentId", postCtrl.DeleteComment)
			authed.POST("/:id/comment/:commentId/reply", postCtrl.CreateReply)
			authed.DELETE("/:id/comment/:commentId/reply/:replyId", postCtrl.DeleteReply)

			authed.POST("/:id/like", postCtrl.Like)
			authed.POST("/:id/dislike", postCtrl.Dislike)
			authed.POST("/:id/share", postCtrl.Share)
		}
	}

	music := api.Group("/music")
	{
		music.GET("", musicCtrl.ListMusic)

		authed := music.Group("", middleware.AuthRequired(db))
		{
			authed.POST("", musicCtrl.CreateMusic)
			authed.GET("/user", musicCtrl.ListMyMusic)
			authed.GET("/playlist", musicCtrl.GetPlaylist)
			authed.POST("/playlist/:id", musicCtrl.AddToPlaylist)
			authed.DELETE("/playlist/:id", musicCtrl.RemoveFromPlaylist)
			authed.GET("/:id", musicCtrl.GetMusic)
			authed.PUT("/:id", musicCtrl.UpdateMusic)
			authed.DELETE("/:id", musicCtrl.DeleteMusic)
		}
	}

	social := api.Group("/socialAuth")
	{
		social.GET("/login/failed", socialCtrl.LoginFailed)
		social.GET("/login/success", middleware.AuthRequired(db), socialCtrl.LoginSuccess)
		social.GET("/logout", middleware.AuthRequired(db), socialCtrl.Logout)

		limited := social.Group("", middleware.RateLimitMiddleware())
		{
			limited.GET("/:provider", socialCtrl.Begin)
			limited.GET("/:provider/redirect", socialCtrl.Callback)
		}
	}

	router.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return router
}

func corsConfig(cfg config.AppConfig) cors.Config {
	conf := cors.DefaultConfig()
	conf.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	conf.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	conf.MaxAge = 12 * time.Hour

	allowAll := len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*"
	if allowAll {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = cfg.AllowedOrigins
		conf.AllowCredentials = true
	}
	return conf
}
