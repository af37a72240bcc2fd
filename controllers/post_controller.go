package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/convoyapp/convoy/middleware"
	"github.com/convoyapp/convoy/models"
	"github.com/convoyapp/convoy/utils"
)

// PostController manages posts and their embedded engagement: comments,
// replies, likes, dislikes and the share counter. Child rows are only ever
// reached through their owning post, so every handler resolves the post
// first and 404s before any deeper check.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// ListPosts returns all posts, optionally filtered by a title/content keyword.
func (p *PostController) ListPosts(ctx *gin.Context) {
	keyword := strings.TrimSpace(ctx.Query("keyword"))

	// Cache only the unfiltered listing to avoid key explosion
	if keyword == "" {
		if b, ok := utils.CacheGetBytes("cache:posts:list"); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var posts []models.Post
	query := p.db.Preload("User").Preload("Comments.Replies").Preload("Likes").Preload("Dislikes").
		Order("created_at DESC")
	if keyword != "" {
		query = query.Where("title LIKE ? OR content LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}
	if err := query.Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to list posts")
		return
	}

	payload := gin.H{"count": len(posts), "posts": posts}
	if keyword == "" {
		utils.CacheSetJSON("cache:posts:list", utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its comments, replies, likes and dislikes.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes("cache:post:detail:" + postID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	post, ok := p.loadPost(ctx, postID)
	if !ok {
		return
	}

	utils.CacheSetJSON("cache:post:detail:"+postID, utils.JSONResponse{Code: 0, Message: "success", Data: post}, time.Hour)
	utils.Success(ctx, post)
}

// ListMyPosts returns posts created by the authenticated user.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var posts []models.Post
	err := p.db.Preload("Comments.Replies").Preload("Likes").Preload("Dislikes").
		Where("user_id = ?", current.ID).Order("created_at DESC").Find(&posts).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list user posts")
		return
	}
	utils.Success(ctx, gin.H{"count": len(posts), "posts": posts})
}

// CreatePost allows authenticated users to create new posts. Title, content
// and image are required; the media reference itself is produced elsewhere.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title    string `json:"title" binding:"required,min=1"`
		Content  string `json:"content" binding:"required"`
		Image    string `json:"image" binding:"required"`
		Category string `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	title := utils.SanitizeStrict(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, "title cannot be empty")
		return
	}

	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	post := models.Post{
		UserID:   current.ID,
		Title:    title,
		Content:  utils.Sanitize(req.Content),
		Image:    req.Image,
		Category: strings.TrimSpace(req.Category),
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list")
	utils.Created(ctx, post)
}

// UpdatePost allows the author to update their post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Image    string `json:"image"`
		Category string `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	post, ok := p.loadOwnPost(ctx, 40301, "you can only update your own posts")
	if !ok {
		return
	}

	if title := utils.SanitizeStrict(strings.TrimSpace(req.Title)); title != "" {
		post.Title = title
	}
	if req.Content != "" {
		post.Content = utils.Sanitize(req.Content)
	}
	if req.Image != "" {
		post.Image = req.Image
	}
	if req.Category != "" {
		post.Category = strings.TrimSpace(req.Category)
	}
	if err := p.db.Save(post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to update post")
		return
	}

	p.invalidatePost(post.ID)
	utils.Success(ctx, post)
}

// DeletePost allows the author to delete their post together with all
// embedded engagement.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.loadOwnPost(ctx, 40302, "you can only delete your own posts")
	if !ok {
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Dislike{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to delete post")
		return
	}

	p.invalidatePost(post.ID)
	utils.Success(ctx, gin.H{"message": "post removed"})
}

// CreateComment appends a comment to a post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid request payload")
		return
	}

	text := utils.Sanitize(req.Text)
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40026, "comment cannot be empty")
		return
	}

	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	comment := models.Comment{
		PostID: post.ID,
		UserID: current.ID,
		Text:   text,
	}
	if err := p.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to create comment")
		return
	}

	p.invalidatePost(post.ID)
	utils.Created(ctx, gin.H{"comment": comment})
}

// ListComments returns the comments of a post in insertion order.
func (p *PostController) ListComments(ctx *gin.Context) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}

	var comments []models.Comment
	if err := p.db.Preload("Replies").Where("post_id = ?", post.ID).Order("id ASC").Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to list comments")
		return
	}
	utils.Success(ctx, gin.H{"comments": comments})
}

// DeleteComment removes a comment and all of its replies in one transaction.
// Only the comment's author may delete it.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}
	comment, ok := p.requireComment(ctx, post.ID)
	if !ok {
		return
	}

	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	if comment.UserID != current.ID {
		utils.Error(ctx, http.StatusForbidden, 40303, "you can only delete your own comment")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		return tx.Delete(comment).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to delete comment")
		return
	}

	p.invalidatePost(post.ID)
	utils.Success(ctx, gin.H{"message": "comment removed"})
}

// CreateReply appends a reply to a comment. Any authenticated user may
// reply; authorship is only checked on deletion.
func (p *PostController) CreateReply(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40027, "invalid request payload")
		return
	}

	text := utils.Sanitize(req.Text)
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40028, "reply cannot be empty")
		return
	}

	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}
	comment, ok := p.requireComment(ctx, post.ID)
	if !ok {
		return
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	reply := models.Reply{
		CommentID: comment.ID,
		PostID:    post.ID,
		UserID:    current.ID,
		Text:      text,
	}
	if err := p.db.Create(&reply).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to create reply")
		return
	}

	p.invalidatePost(post.ID)
	utils.Created(ctx, gin.H{"reply": reply})
}

// DeleteReply removes a single reply. Only the reply's author may delete it.
func (p *PostController) DeleteReply(ctx *gin.Context) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}
	comment, ok := p.requireComment(ctx, post.ID)
	if !ok {
		return
	}

	var reply models.Reply
	err := p.db.Where("id = ? AND comment_id = ?", ctx.Param("replyId"), comment.ID).First(&reply).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40404, "reply not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to load reply")
		return
	}

	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	if reply.UserID != current.ID {
		utils.Error(ctx, http.StatusForbidden, 40304, "you can only delete your own reply")
		return
	}

	if err := p.db.Delete(&reply).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to delete reply")
		return
	}

	p.invalidatePost(post.ID)
	utils.Success(ctx, gin.H{"message": "reply removed"})
}

// Like marks the post as liked by the acting user. A second like by the
// same user is an error, not a no-op. Like and dislike states are
// independent of each other.
func (p *PostController) Like(ctx *gin.Context) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var existing models.Like
	err := p.db.Where("post_id = ? AND user_id = ?", post.ID, current.ID).First(&existing).Error
	if err == nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "post already liked")
		return
	}
	if err != gorm.ErrRecordNotFound {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to check likes")
		return
	}

	if err := p.db.Create(&models.Like{PostID: post.ID, UserID: current.ID}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to like post")
		return
	}

	var likes []models.Like
	_ = p.db.Where("post_id = ?", post.ID).Order("id ASC").Find(&likes).Error
	p.invalidatePost(post.ID)
	utils.Created(ctx, gin.H{"likes": likes})
}

// Dislike mirrors Like with the opposite sentiment and the same
// second-call-is-an-error policy.
func (p *PostController) Dislike(ctx *gin.Context) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var existing models.Dislike
	err := p.db.Where("post_id = ? AND user_id = ?", post.ID, current.ID).First(&existing).Error
	if err == nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "post already disliked")
		return
	}
	if err != gorm.ErrRecordNotFound {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to check dislikes")
		return
	}

	if err := p.db.Create(&models.Dislike{PostID: post.ID, UserID: current.ID}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to dislike post")
		return
	}

	var dislikes []models.Dislike
	_ = p.db.Where("post_id = ?", post.ID).Order("id ASC").Find(&dislikes).Error
	p.invalidatePost(post.ID)
	utils.Created(ctx, gin.H{"dislikes": dislikes})
}

// Share increments the post's share counter unconditionally; the same user
// sharing twice counts twice.
func (p *PostController) Share(ctx *gin.Context) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return
	}

	err := p.db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumn("share_count", gorm.Expr("share_count + 1")).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to share post")
		return
	}

	var fresh models.Post
	if err := p.db.Select("share_count").First(&fresh, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to load share count")
		return
	}

	p.invalidatePost(post.ID)
	utils.Created(ctx, gin.H{"share_count": fresh.ShareCount})
}

// requirePost resolves the :id path param to a post or writes a 404.
func (p *PostController) requirePost(ctx *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50037, "failed to load post")
		return nil, false
	}
	return &post, true
}

// requireComment resolves :commentId scoped to the given post.
func (p *PostController) requireComment(ctx *gin.Context, postID uint) (*models.Comment, bool) {
	var comment models.Comment
	err := p.db.Where("id = ? AND post_id = ?", ctx.Param("commentId"), postID).First(&comment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40403, "comment not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50038, "failed to load comment")
		return nil, false
	}
	return &comment, true
}

// loadOwnPost resolves :id and enforces that the acting user is the author.
func (p *PostController) loadOwnPost(ctx *gin.Context, forbiddenCode int, forbiddenMsg string) (*models.Post, bool) {
	post, ok := p.requirePost(ctx)
	if !ok {
		return nil, false
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return nil, false
	}
	if post.UserID != current.ID {
		utils.Error(ctx, http.StatusForbidden, forbiddenCode, forbiddenMsg)
		return nil, false
	}
	return post, true
}

// loadPost fetches a post with its full engagement tree.
func (p *PostController) loadPost(ctx *gin.Context, postID string) (*models.Post, bool) {
	var post models.Post
	err := p.db.Preload("User").Preload("Comments.Replies").Preload("Likes").Preload("Dislikes").
		First(&post, postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50037, "failed to load post")
		return nil, false
	}
	return &post, true
}

func (p *PostController) invalidatePost(postID uint) {
	utils.InvalidateByPrefix("cache:posts:list")
	utils.InvalidateByPrefix(fmt.Sprintf("cache:post:detail:%d", postID))
}
