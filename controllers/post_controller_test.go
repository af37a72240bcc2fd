package controllers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoyapp/convoy/models"
)

func TestCreatePostValidation(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	token, _ := registerUser(t, router, "alice", "alice@example.com")

	w := doJSON(t, router, "POST", "/api/posts", token, map[string]string{
		"title":   "no image",
		"content": "missing the media reference",
	})
	assert.Equal(t, 400, w.Code)

	w = doJSON(t, router, "POST", "/api/posts", "", map[string]string{
		"title":   "anonymous",
		"content": "no token",
		"image":   "uploads/x.jpg",
	})
	assert.Equal(t, 401, w.Code)
}

func TestPostLifecycle(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, _ := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	postID := createPost(t, router, tokenA, "roadtrip")

	// Listing is public
	w := doJSON(t, router, "GET", "/api/posts", "", nil)
	require.Equal(t, 200, w.Code)
	_, data := decodeEnvelope(t, w)
	assert.EqualValues(t, 1, data["count"])

	w = doJSON(t, router, "GET", "/api/posts?keyword=road", "", nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	assert.EqualValues(t, 1, data["count"])

	w = doJSON(t, router, "GET", "/api/posts?keyword=nomatch", "", nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	assert.EqualValues(t, 0, data["count"])

	// Only the author may update or delete
	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/posts/%d", postID), tokenB, map[string]string{
		"title": "hijacked",
	})
	assert.Equal(t, 403, w.Code)

	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/posts/%d", postID), tokenA, map[string]string{
		"title": "roadtrip, day two",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d", postID), tokenB, nil)
	assert.Equal(t, 403, w.Code)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d", postID), tokenA, nil)
	require.Equal(t, 200, w.Code)

	w = doJSON(t, router, "GET", fmt.Sprintf("/api/posts/%d", postID), "", nil)
	assert.Equal(t, 404, w.Code)
}

func TestCommentAndReplyFlow(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, _ := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	postID := createPost(t, router, tokenA, "concert night")

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/comment", postID), tokenB, map[string]string{
		"text": "great set list",
	})
	require.Equal(t, 201, w.Code, w.Body.String())
	_, data := decodeEnvelope(t, w)
	comment, _ := data["comment"].(map[string]interface{})
	require.NotNil(t, comment)
	commentID := uint(comment["id"].(float64))

	// Anyone authenticated may reply, even the post author
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/comment/%d/reply", postID, commentID), tokenA, map[string]string{
		"text": "thanks, glad you came",
	})
	require.Equal(t, 201, w.Code, w.Body.String())
	_, data = decodeEnvelope(t, w)
	reply, _ := data["reply"].(map[string]interface{})
	require.NotNil(t, reply)
	replyID := uint(reply["id"].(float64))

	w = doJSON(t, router, "GET", fmt.Sprintf("/api/posts/%d/comment", postID), "", nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	comments, _ := data["comments"].([]interface{})
	require.Len(t, comments, 1)

	// Only the reply author may remove the reply
	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d/comment/%d/reply/%d", postID, commentID, replyID), tokenB, nil)
	assert.Equal(t, 403, w.Code)
	var replyCount int64
	db.Model(&models.Reply{}).Where("comment_id = ?", commentID).Count(&replyCount)
	assert.EqualValues(t, 1, replyCount)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d/comment/%d/reply/%d", postID, commentID, replyID), tokenA, nil)
	require.Equal(t, 200, w.Code)
	db.Model(&models.Reply{}).Where("comment_id = ?", commentID).Count(&replyCount)
	assert.EqualValues(t, 0, replyCount)

	// Only the comment author may remove the comment, and a failed attempt
	// leaves it in place
	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d/comment/%d", postID, commentID), tokenA, nil)
	assert.Equal(t, 403, w.Code)
	var commentCount int64
	db.Model(&models.Comment{}).Where("id = ?", commentID).Count(&commentCount)
	assert.EqualValues(t, 1, commentCount)

	// Put a reply back so the cascade has something to remove
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/comment/%d/reply", postID, commentID), tokenA, map[string]string{
		"text": "one more",
	})
	require.Equal(t, 201, w.Code)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d/comment/%d", postID, commentID), tokenB, nil)
	require.Equal(t, 200, w.Code)

	// Removing the comment takes its replies with it
	db.Model(&models.Reply{}).Where("comment_id = ?", commentID).Count(&replyCount)
	assert.EqualValues(t, 0, replyCount)

	// Touching replies under the removed comment now 404s on the comment
	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d/comment/%d/reply/%d", postID, commentID, replyID), tokenA, nil)
	assert.Equal(t, 404, w.Code)
	code, _ := decodeEnvelope(t, w)
	assert.Equal(t, 40403, code)
}

func TestCommentNotFoundOrdering(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	token, _ := registerUser(t, router, "alice", "alice@example.com")
	postID := createPost(t, router, token, "lonely post")

	// Missing post wins over missing comment
	w := doJSON(t, router, "DELETE", "/api/posts/9999/comment/1", token, nil)
	assert.Equal(t, 404, w.Code)
	code, _ := decodeEnvelope(t, w)
	assert.Equal(t, 40402, code)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/posts/%d/comment/9999", postID), token, nil)
	assert.Equal(t, 404, w.Code)
	code, _ = decodeEnvelope(t, w)
	assert.Equal(t, 40403, code)
}

func TestLikeDislikeIndependence(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, _ := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	postID := createPost(t, router, tokenA, "divisive take")

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/like", postID), tokenB, nil)
	require.Equal(t, 201, w.Code, w.Body.String())

	// Second like by the same user is an error, not a no-op
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/like", postID), tokenB, nil)
	assert.Equal(t, 400, w.Code)
	code, _ := decodeEnvelope(t, w)
	assert.Equal(t, 40030, code)

	// A dislike from the same user coexists with the like
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/dislike", postID), tokenB, nil)
	require.Equal(t, 201, w.Code, w.Body.String())

	w = doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/dislike", postID), tokenB, nil)
	assert.Equal(t, 400, w.Code)
	code, _ = decodeEnvelope(t, w)
	assert.Equal(t, 40031, code)

	var likeCount, dislikeCount int64
	db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&likeCount)
	db.Model(&models.Dislike{}).Where("post_id = ?", postID).Count(&dislikeCount)
	assert.EqualValues(t, 1, likeCount)
	assert.EqualValues(t, 1, dislikeCount)
}

func TestShareCounter(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	token, _ := registerUser(t, router, "alice", "alice@example.com")
	postID := createPost(t, router, token, "catchy tune")

	for i := 1; i <= 3; i++ {
		w := doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/share", postID), token, nil)
		require.Equal(t, 201, w.Code, w.Body.String())
		_, data := decodeEnvelope(t, w)
		assert.EqualValues(t, i, data["share_count"])
	}
}

func TestListMyPosts(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, _ := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	createPost(t, router, tokenA, "first")
	createPost(t, router, tokenA, "second")
	createPost(t, router, tokenB, "other")

	w := doJSON(t, router, "GET", "/api/posts/user", tokenA, nil)
	require.Equal(t, 200, w.Code)
	_, data := decodeEnvelope(t, w)
	assert.EqualValues(t, 2, data["count"])
}
