package controllers

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoyapp/convoy/models"
)

func createMusic(t *testing.T, router *gin.Engine, token, title, artist string) uint {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/music", token, map[string]interface{}{
		"title":  title,
		"artist": artist,
		"album":  "Greatest Hits",
		"genre":  "Rock",
		"year":   1999,
		"poster": "uploads/poster.jpg",
	})
	require.Equal(t, 201, w.Code, w.Body.String())
	_, data := decodeEnvelope(t, w)
	id, _ := data["id"].(float64)
	require.NotZero(t, id)
	return uint(id)
}

func TestMusicCatalog(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, _ := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	trackID := createMusic(t, router, tokenA, "Thunder Road", "Bruce")

	// Catalog listing is public, keyword matches title, artist and album
	w := doJSON(t, router, "GET", "/api/music", "", nil)
	require.Equal(t, 200, w.Code)
	_, data := decodeEnvelope(t, w)
	assert.EqualValues(t, 1, data["count"])

	w = doJSON(t, router, "GET", "/api/music?keyword=Bruce", "", nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	assert.EqualValues(t, 1, data["count"])

	w = doJSON(t, router, "GET", "/api/music?keyword=nomatch", "", nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	assert.EqualValues(t, 0, data["count"])

	// Only the uploader may edit or remove a track
	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/music/%d", trackID), tokenB, map[string]string{
		"title": "hijacked",
	})
	assert.Equal(t, 403, w.Code)

	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/music/%d", trackID), tokenA, map[string]string{
		"album": "Born to Run",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	var track models.Music
	require.NoError(t, db.First(&track, trackID).Error)
	assert.Equal(t, "Born to Run", track.Album)
	assert.Equal(t, "Thunder Road", track.Title)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/music/%d", trackID), tokenB, nil)
	assert.Equal(t, 403, w.Code)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/music/%d", trackID), tokenA, nil)
	require.Equal(t, 200, w.Code)

	w = doJSON(t, router, "GET", fmt.Sprintf("/api/music/%d", trackID), tokenA, nil)
	assert.Equal(t, 404, w.Code)
}

func TestListMyMusic(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, _ := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	createMusic(t, router, tokenA, "Track One", "Alice Band")
	createMusic(t, router, tokenA, "Track Two", "Alice Band")
	createMusic(t, router, tokenB, "Other Track", "Bob Band")

	w := doJSON(t, router, "GET", "/api/music/user", tokenA, nil)
	require.Equal(t, 200, w.Code)
	_, data := decodeEnvelope(t, w)
	assert.EqualValues(t, 2, data["count"])
}

func TestPlaylist(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	tokenA, idA := registerUser(t, router, "alice", "alice@example.com")
	tokenB, _ := registerUser(t, router, "bob", "bob@example.com")

	trackID := createMusic(t, router, tokenB, "Shared Song", "Bob Band")

	// Any user's playlist may reference any catalog track
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/music/playlist/%d", trackID), tokenA, nil)
	require.Equal(t, 201, w.Code, w.Body.String())
	_, data := decodeEnvelope(t, w)
	playlist, _ := data["playlist"].([]interface{})
	require.Len(t, playlist, 1)
	entry := playlist[0].(map[string]interface{})
	assert.Equal(t, "Shared Song", entry["name"])

	// Duplicates are allowed
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/music/playlist/%d", trackID), tokenA, nil)
	require.Equal(t, 201, w.Code)
	_, data = decodeEnvelope(t, w)
	playlist, _ = data["playlist"].([]interface{})
	require.Len(t, playlist, 2)

	// The denormalized name survives a later catalog edit
	require.NoError(t, db.Model(&models.Music{}).Where("id = ?", trackID).Update("title", "Renamed Song").Error)
	w = doJSON(t, router, "GET", "/api/music/playlist", tokenA, nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	playlist, _ = data["playlist"].([]interface{})
	require.Len(t, playlist, 2)
	assert.Equal(t, "Shared Song", playlist[0].(map[string]interface{})["name"])

	// Removal is scoped to the owner's entries
	entryID := uint(playlist[0].(map[string]interface{})["id"].(float64))
	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/music/playlist/%d", entryID), tokenB, nil)
	assert.Equal(t, 404, w.Code)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/music/playlist/%d", entryID), tokenA, nil)
	require.Equal(t, 200, w.Code)
	_, data = decodeEnvelope(t, w)
	playlist, _ = data["playlist"].([]interface{})
	assert.Len(t, playlist, 1)

	var count int64
	db.Model(&models.PlaylistEntry{}).Where("user_id = ?", idA).Count(&count)
	assert.EqualValues(t, 1, count)

	// Adding a missing track 404s
	w = doJSON(t, router, "POST", "/api/music/playlist/9999", tokenA, nil)
	assert.Equal(t, 404, w.Code)
}

func TestMusicRequiresAuthForWrite(t *testing.T) {
	router := newTestRouter(setupTestDB(t), &testMailer{})

	w := doJSON(t, router, "POST", "/api/music", "", map[string]interface{}{
		"title":  "Anon Track",
		"artist": "Nobody",
		"album":  "None",
		"genre":  "None",
		"year":   2000,
		"poster": "uploads/p.jpg",
	})
	assert.Equal(t, 401, w.Code)
}
