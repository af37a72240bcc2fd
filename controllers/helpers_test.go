package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/convoyapp/convoy/config"
	"github.com/convoyapp/convoy/middleware"
	"github.com/convoyapp/convoy/models"
	"github.com/convoyapp/convoy/utils"
)

// testMailer records deliveries in memory and can be told to fail.
type testMailer struct {
	sent []sentMail
	fail bool
}

type sentMail struct {
	to, subject, text, html string
}

func (m *testMailer) Send(to, subject, text, html string) error {
	if m.fail {
		return fmt.Errorf("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, text: text, html: html})
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	config.SetForTesting(config.AppConfig{
		AppPort:            "5000",
		JWTSecret:          "test-secret-key",
		ClientURL:          "http://localhost:3000",
		DBDriver:           "sqlite",
		RateLimitPerMinute: 1000,
		RedisHost:          "127.0.0.1",
		RedisPort:          6379,
	})
	utils.Logger = zap.NewNop()
	utils.Sugar = utils.Logger.Sugar()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.FollowerEdge{}, &models.FollowingEdge{},
		&models.Post{}, &models.Comment{}, &models.Reply{}, &models.Like{}, &models.Dislike{},
		&models.Music{}, &models.PlaylistEntry{},
	))
	return db
}

// newTestRouter registers the API surface without the logging, CORS and
// rate-limit middleware that only matter in production.
func newTestRouter(db *gorm.DB, mailer utils.Mailer) *gin.Engine {
	router := gin.New()

	userCtrl := NewUserController(db, mailer)
	postCtrl := NewPostController(db)
	musicCtrl := NewMusicController(db)

	api := router.Group("/api")

	users := api.Group("/users")
	{
		users.POST("", userCtrl.Register)
		users.POST("/login", userCtrl.Login)
		users.POST("/forgotPassword", userCtrl.ForgotPassword)
		users.PUT("/resetPassword/:token", userCtrl.ResetPassword)

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

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeEnvelope unwraps the {code, message, data} response body.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (int, map[string]interface{}) {
	t.Helper()

	var envelope struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Code, envelope.Data
}

func registerUser(t *testing.T, router *gin.Engine, name, email string) (string, uint) {
	t.Helper()

	w := doJSON(t, router, "POST", "/api/users", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, 201, w.Code, w.Body.String())

	_, data := decodeEnvelope(t, w)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	user, _ := data["user"].(map[string]interface{})
	require.NotNil(t, user)
	id, _ := user["id"].(float64)
	require.NotZero(t, id)
	return token, uint(id)
}

func createPost(t *testing.T, router *gin.Engine, token, title string) uint {
	t.Helper()

	w := doJSON(t, router, "POST", "/api/posts", token, map[string]string{
		"title":   title,
		"content": "some content for " + title,
		"image":   "uploads/" + title + ".jpg",
	})
	require.Equal(t, 201, w.Code, w.Body.String())

	_, data := decodeEnvelope(t, w)
	id, _ := data["id"].(float64)
	require.NotZero(t, id)
	return uint(id)
}
