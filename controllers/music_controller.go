package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/convoyapp/convoy/middleware"
	"github.com/convoyapp/convoy/models"
	"github.com/convoyapp/convoy/utils"
)

// MusicController manages the shared music catalog and the per-user playlists
// built on top of it.
type MusicController struct {
	db *gorm.DB
}

// NewMusicController creates a new MusicController instance.
func NewMusicController(db *gorm.DB) *MusicController {
	return &MusicController{db: db}
}

type musicRequest struct {
	Title  string `json:"title" binding:"required"`
	Artist string `json:"artist" binding:"required"`
	Album  string `json:"album" binding:"required"`
	Genre  string `json:"genre" binding:"required"`
	Year   int    `json:"year" binding:"required"`
	File   string `json:"file"`
	Poster string `json:"poster" binding:"required"`
}

// ListMusic returns the catalog, optionally filtered by a keyword matched
// against title, artist and album.
func (m *MusicController) ListMusic(ctx *gin.Context) {
	keyword := strings.TrimSpace(ctx.Query("keyword"))

	if keyword == "" {
		if b, ok := utils.CacheGetBytes("cache:music:list"); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var tracks []models.Music
	query := m.db.Order("created_at DESC")
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("title LIKE ? OR artist LIKE ? OR album LIKE ?", like, like, like)
	}
	if err := query.Find(&tracks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to list music")
		return
	}

	payload := gin.H{"count": len(tracks), "music": tracks}
	if keyword == "" {
		utils.CacheSetJSON("cache:music:list", utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetMusic returns a single catalog entry.
func (m *MusicController) GetMusic(ctx *gin.Context) {
	track, ok := m.requireMusic(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, track)
}

// ListMyMusic returns the tracks uploaded by the authenticated user.
func (m *MusicController) ListMyMusic(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var tracks []models.Music
	if err := m.db.Where("user_id = ?", current.ID).Order("created_at DESC").Find(&tracks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list user music")
		return
	}
	utils.Success(ctx, gin.H{"count": len(tracks), "music": tracks})
}

// CreateMusic adds a track to the catalog, owned by the acting user.
func (m *MusicController) CreateMusic(ctx *gin.Context) {
	var req musicRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	track := models.Music{
		UserID: current.ID,
		Title:  utils.SanitizeStrict(strings.TrimSpace(req.Title)),
		Artist: utils.SanitizeStrict(strings.TrimSpace(req.Artist)),
		Album:  utils.SanitizeStrict(strings.TrimSpace(req.Album)),
		Genre:  utils.SanitizeStrict(strings.TrimSpace(req.Genre)),
		Year:   req.Year,
		File:   req.File,
		Poster: req.Poster,
	}
	if track.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "title cannot be empty")
		return
	}

	if err := m.db.Create(&track).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to create music")
		return
	}

	utils.InvalidateByPrefix("cache:music:list")
	utils.Created(ctx, track)
}

// UpdateMusic lets the uploader edit a catalog entry.
func (m *MusicController) UpdateMusic(ctx *gin.Context) {
	var req struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
		Album  string `json:"album"`
		Genre  string `json:"genre"`
		Year   int    `json:"year"`
		File   string `json:"file"`
		Poster string `json:"poster"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid request payload")
		return
	}

	track, ok := m.requireOwnMusic(ctx, 40320, "you can only update your own music")
	if !ok {
		return
	}

	if v := utils.SanitizeStrict(strings.TrimSpace(req.Title)); v != "" {
		track.Title = v
	}
	if v := utils.SanitizeStrict(strings.TrimSpace(req.Artist)); v != "" {
		track.Artist = v
	}
	if v := utils.SanitizeStrict(strings.TrimSpace(req.Album)); v != "" {
		track.Album = v
	}
	if v := utils.SanitizeStrict(strings.TrimSpace(req.Genre)); v != "" {
		track.Genre = v
	}
	if req.Year != 0 {
		track.Year = req.Year
	}
	if req.File != "" {
		track.File = req.File
	}
	if req.Poster != "" {
		track.Poster = req.Poster
	}

	if err := m.db.Save(track).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to update music")
		return
	}

	utils.InvalidateByPrefix("cache:music:list")
	utils.Success(ctx, track)
}

// DeleteMusic lets the uploader remove a catalog entry.
// Existing playlist entries keep their denormalized name and are not
// cleaned up here.
func (m *MusicController) DeleteMusic(ctx *gin.Context) {
	track, ok := m.requireOwnMusic(ctx, 40321, "you can only delete your own music")
	if !ok {
		return
	}

	if err := m.db.Delete(track).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to delete music")
		return
	}

	utils.InvalidateByPrefix("cache:music:list")
	utils.Success(ctx, gin.H{"message": "music removed"})
}

// GetPlaylist returns the acting user's playlist entries in insertion order.
func (m *MusicController) GetPlaylist(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var entries []models.PlaylistEntry
	if err := m.db.Where("user_id = ?", current.ID).Order("id ASC").Find(&entries).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to load playlist")
		return
	}
	utils.Success(ctx, gin.H{"playlist": entries})
}

// AddToPlaylist appends a catalog track to the acting user's playlist.
// The track title is copied into the entry so the playlist survives later
// catalog edits. Duplicates are allowed.
func (m *MusicController) AddToPlaylist(ctx *gin.Context) {
	track, ok := m.requireMusic(ctx)
	if !ok {
		return
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	entry := models.PlaylistEntry{
		UserID:  current.ID,
		MusicID: track.ID,
		Name:    track.Title,
	}
	if err := m.db.Create(&entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50056, "failed to add to playlist")
		return
	}

	var entries []models.PlaylistEntry
	_ = m.db.Where("user_id = ?", current.ID).Order("id ASC").Find(&entries).Error
	utils.Created(ctx, gin.H{"playlist": entries})
}

// RemoveFromPlaylist removes one playlist entry by its entry id. Entries
// belong to exactly one user, so the lookup is scoped to the acting user.
func (m *MusicController) RemoveFromPlaylist(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var entry models.PlaylistEntry
	err := m.db.Where("id = ? AND user_id = ?", ctx.Param("id"), current.ID).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40421, "playlist entry not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to load playlist entry")
		return
	}

	if err := m.db.Delete(&entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to remove playlist entry")
		return
	}

	var entries []models.PlaylistEntry
	_ = m.db.Where("user_id = ?", current.ID).Order("id ASC").Find(&entries).Error
	utils.Success(ctx, gin.H{"playlist": entries})
}

// requireMusic resolves the :id path param to a catalog entry or writes a 404.
func (m *MusicController) requireMusic(ctx *gin.Context) (*models.Music, bool) {
	var track models.Music
	if err := m.db.First(&track, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40420, "music not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50059, "failed to load music")
		return nil, false
	}
	return &track, true
}

// requireOwnMusic resolves :id and enforces that the acting user uploaded it.
func (m *MusicController) requireOwnMusic(ctx *gin.Context, forbiddenCode int, forbiddenMsg string) (*models.Music, bool) {
	track, ok := m.requireMusic(ctx)
	if !ok {
		return nil, false
	}
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return nil, false
	}
	if track.UserID != current.ID {
		utils.Error(ctx, http.StatusForbidden, forbiddenCode, forbiddenMsg)
		return nil, false
	}
	return track, true
}
