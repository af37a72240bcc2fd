package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/convoyapp/convoy/config"
	"github.com/convoyapp/convoy/middleware"
	"github.com/convoyapp/convoy/models"
	"github.com/convoyapp/convoy/utils"
)

// UserController handles account management, the follower graph and
// password-reset flows.
type UserController struct {
	db     *gorm.DB
	mailer utils.Mailer
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB, mailer utils.Mailer) *UserController {
	return &UserController{db: db, mailer: mailer}
}

// Register handles local account registration with bcrypt hashing.
func (u *UserController) Register(ctx *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required,min=3,max=30"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if !validPassword(req.Password) {
		utils.ValidationError(ctx, 40002, map[string]string{"password": "must be 6-30 letters and digits"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	if err := u.db.Where("email = ?", email).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Name:         utils.SanitizeStrict(strings.TrimSpace(req.Name)),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := u.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Created(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// Login verifies user credentials and issues a JWT.
func (u *UserController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	err := u.db.Preload("Followers").Preload("Followings").
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid email or password")
		return
	}

	// Social-auth-only accounts have no password hash and can never match.
	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid email or password")
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// Profile returns the authenticated user's own record.
func (u *UserController) Profile(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var user models.User
	if err := u.db.Preload("Followers").Preload("Followings").First(&user, current.ID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	utils.Success(ctx, userResponse(user))
}

// UpdateProfile applies partial updates to the authenticated user's record.
func (u *UserController) UpdateProfile(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var req profileUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	var user models.User
	if err := u.db.First(&user, current.ID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if fields := applyProfileUpdate(&user, &req); len(fields) > 0 {
		utils.ValidationError(ctx, 40005, fields)
		return
	}
	if err := u.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to update profile")
		return
	}

	utils.InvalidateByPrefix("cache:user:" + strconv.Itoa(int(user.ID)))
	token, _ := utils.GenerateToken(user.ID)
	utils.Success(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// ListUsers returns all users, optionally filtered by a name keyword. Admin only.
func (u *UserController) ListUsers(ctx *gin.Context) {
	keyword := strings.TrimSpace(ctx.Query("keyword"))

	var users []models.User
	query := u.db.Preload("Followers").Preload("Followings").Order("created_at DESC")
	if keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}
	if err := query.Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to list users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, user := range users {
		items = append(items, userResponse(user))
	}
	utils.Success(ctx, gin.H{"count": len(items), "items": items})
}

// GetUser returns a user by id. Any authenticated user may call this.
func (u *UserController) GetUser(ctx *gin.Context) {
	userID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes("cache:user:" + userID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var user models.User
	err := u.db.Preload("Followers").Preload("Followings").First(&user, userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to load user")
		return
	}

	payload := userResponse(user)
	utils.CacheSetJSON("cache:user:"+userID, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// UpdateUser applies partial updates to any user record. Admin only.
func (u *UserController) UpdateUser(ctx *gin.Context) {
	var req profileUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid request payload")
		return
	}

	var user models.User
	if err := u.db.First(&user, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if fields := applyProfileUpdate(&user, &req); len(fields) > 0 {
		utils.ValidationError(ctx, 40005, fields)
		return
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := u.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to update user")
		return
	}

	utils.InvalidateByPrefix("cache:user:" + strconv.Itoa(int(user.ID)))
	utils.Success(ctx, userResponse(user))
}

// DeleteUser removes a user record. Admin only.
// Deletion does not cascade into other users' follower or following edges,
// nor into authored posts; dangling references are a documented gap.
func (u *UserController) DeleteUser(ctx *gin.Context) {
	var user models.User
	if err := u.db.First(&user, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	if err := u.db.Delete(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to delete user")
		return
	}
	utils.InvalidateByPrefix("cache:user:" + strconv.Itoa(int(user.ID)))
	utils.Success(ctx, gin.H{"message": "user removed"})
}

// AddUser upserts an account by email. Admin only: when the email already
// exists only the name is refreshed, otherwise a full account is created.
func (u *UserController) AddUser(ctx *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required,min=3,max=30"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Phone    string `json:"phone"`
		File     string `json:"file"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "invalid request payload")
		return
	}
	if !validPassword(req.Password) {
		utils.ValidationError(ctx, 40002, map[string]string{"password": "must be 6-30 letters and digits"})
		return
	}
	if req.Phone != "" && !validPhone(req.Phone) {
		utils.ValidationError(ctx, 40002, map[string]string{"phone": "must be 10 digits"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	if err := u.db.Where("email = ?", email).First(&existing).Error; err == nil {
		existing.Name = utils.SanitizeStrict(strings.TrimSpace(req.Name))
		if err := u.db.Save(&existing).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to update user")
			return
		}
		utils.Created(ctx, userResponse(existing))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	user := models.User{
		Name:         utils.SanitizeStrict(strings.TrimSpace(req.Name)),
		Email:        email,
		PasswordHash: hash,
		Phone:        req.Phone,
		ProfileImage: req.File,
		IsAdmin:      req.IsAdmin,
		IsActive:     true,
	}
	if err := u.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, _ := utils.GenerateToken(user.ID)
	utils.Created(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// Follow adds the target to the acting user's followings and, symmetrically,
// the acting user to the target's followers. The two writes are sequential
// and not wrapped in a transaction: a failure between them leaves the graph
// asymmetric until the operation is retried.
func (u *UserController) Follow(ctx *gin.Context) {
	current, target, ok := u.followPair(ctx)
	if !ok {
		return
	}

	var edge models.FollowingEdge
	err := u.db.Where("user_id = ? AND peer_id = ?", current.ID, target.ID).First(&edge).Error
	if err == gorm.ErrRecordNotFound {
		if err := u.db.Create(&models.FollowingEdge{UserID: current.ID, PeerID: target.ID}).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to update followings")
			return
		}
	} else if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to update followings")
		return
	}

	var back models.FollowerEdge
	err = u.db.Where("user_id = ? AND peer_id = ?", target.ID, current.ID).First(&back).Error
	if err == gorm.ErrRecordNotFound {
		if err := u.db.Create(&models.FollowerEdge{UserID: target.ID, PeerID: current.ID}).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to update followers")
			return
		}
	} else if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to update followers")
		return
	}

	u.respondWithGraph(ctx, current.ID)
}

// Unfollow removes both edges created by Follow, with the same sequential
// two-write semantics.
func (u *UserController) Unfollow(ctx *gin.Context) {
	current, target, ok := u.followPair(ctx)
	if !ok {
		return
	}

	if err := u.db.Where("user_id = ? AND peer_id = ?", current.ID, target.ID).
		Delete(&models.FollowingEdge{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to update followings")
		return
	}
	if err := u.db.Where("user_id = ? AND peer_id = ?", target.ID, current.ID).
		Delete(&models.FollowerEdge{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to update followers")
		return
	}

	u.respondWithGraph(ctx, current.ID)
}

// ForgotPassword issues a password-reset token and mails it to the account's
// address. Only the token's hash is stored; when delivery fails the stored
// hash and expiry are rolled back so a half-created token cannot linger.
func (u *UserController) ForgotPassword(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40008, "invalid request payload")
		return
	}

	var user models.User
	err := u.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to generate reset token")
		return
	}
	expiry := time.Now().Add(utils.ResetTokenTTL)
	user.PasswordResetTokenHash = utils.HashResetToken(token)
	user.PasswordResetExpiry = &expiry
	if err := u.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to store reset token")
		return
	}

	resetURL := fmt.Sprintf("%s/users/resetpassword/%s", config.Get().ClientURL, token)
	text := fmt.Sprintf("Forgot your password? Submit a PUT request with your new password and password confirm to: %s.\nIf you didn't forget your password, please ignore this email.", resetURL)
	html := fmt.Sprintf(`<p><a href=%q>Click here to reset your password</a></p>`, resetURL)

	if err := u.mailer.Send(user.Email, "Your password reset token (valid for 10 min)", text, html); err != nil {
		// Compensating cleanup: without it a token the user never received
		// could still be redeemed later.
		user.PasswordResetTokenHash = ""
		user.PasswordResetExpiry = nil
		if saveErr := u.db.Save(&user).Error; saveErr != nil {
			utils.Sugar.Errorf("failed to roll back reset token for user %d: %v", user.ID, saveErr)
		}
		utils.Error(ctx, http.StatusInternalServerError, 50040, "there was an error sending the email, try again later")
		return
	}

	utils.Success(ctx, gin.H{"message": "token sent to the email"})
}

// ResetPassword redeems a reset token. The token must hash to the stored
// value and be unexpired; on success the new password and the cleared reset
// fields are persisted in a single write.
func (u *UserController) ResetPassword(ctx *gin.Context) {
	var req struct {
		Password        string `json:"password" binding:"required,min=6"`
		ConfirmPassword string `json:"confirmPassword" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40009, "invalid request payload")
		return
	}

	hashed := utils.HashResetToken(ctx.Param("token"))
	var user models.User
	err := u.db.Where("password_reset_token_hash = ? AND password_reset_expiry > ?", hashed, time.Now()).
		First(&user).Error
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "token is invalid or has expired")
		return
	}

	if req.Password != req.ConfirmPassword {
		utils.Error(ctx, http.StatusBadRequest, 40021, "passwords did not match")
		return
	}
	if !validPassword(req.Password) {
		utils.ValidationError(ctx, 40002, map[string]string{"password": "must be 6-30 letters and digits"})
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	user.PasswordHash = hash
	user.PasswordResetTokenHash = ""
	user.PasswordResetExpiry = nil
	if err := u.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to reset password")
		return
	}

	token, _ := utils.GenerateToken(user.ID)
	utils.Success(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// followPair resolves the acting user and the ?userId= target for
// follow/unfollow, rejecting missing targets and self-references.
func (u *UserController) followPair(ctx *gin.Context) (*models.User, *models.User, bool) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return nil, nil, false
	}

	targetID, err := strconv.ParseUint(strings.TrimSpace(ctx.Query("userId")), 10, 64)
	if err != nil || targetID == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40010, "missing or invalid userId")
		return nil, nil, false
	}
	if uint(targetID) == current.ID {
		utils.Error(ctx, http.StatusBadRequest, 40011, "cannot follow yourself")
		return nil, nil, false
	}

	var target models.User
	if err := u.db.First(&target, uint(targetID)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40411, "user does not exist")
		return nil, nil, false
	}
	return current, &target, true
}

func (u *UserController) respondWithGraph(ctx *gin.Context, userID uint) {
	var user models.User
	if err := u.db.Preload("Followers").Preload("Followings").First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to load user")
		return
	}
	utils.InvalidateByPrefix("cache:user:")
	utils.Success(ctx, userResponse(user))
}

type profileUpdateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	File     string `json:"file"`
	Gender   string `json:"gender"`
	Bio      string `json:"bio"`
	IsAdmin  *bool  `json:"is_admin"`
	IsActive *bool  `json:"is_active"`
}

// applyProfileUpdate copies the provided fields onto the user, returning
// per-field validation failures. IsAdmin/IsActive are handled by callers
// that are allowed to touch them.
func applyProfileUpdate(user *models.User, req *profileUpdateRequest) map[string]string {
	fields := map[string]string{}

	if name := strings.TrimSpace(req.Name); name != "" {
		if l := len([]rune(name)); l < 3 || l > 30 {
			fields["name"] = "must be 3-30 characters"
		} else {
			user.Name = utils.SanitizeStrict(name)
		}
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		if !strings.Contains(email, "@") {
			fields["email"] = "must be a valid email address"
		} else {
			user.Email = strings.ToLower(email)
		}
	}
	if req.Phone != "" {
		if !validPhone(req.Phone) {
			fields["phone"] = "must be 10 digits"
		} else {
			user.Phone = req.Phone
		}
	}
	if req.File != "" {
		user.ProfileImage = req.File
	}
	if req.Gender != "" {
		if req.Gender != models.GenderMale && req.Gender != models.GenderFemale {
			fields["gender"] = "must be Male or Female"
		} else {
			user.Gender = req.Gender
		}
	}
	if req.Bio != "" {
		user.Bio = utils.SanitizeStrict(req.Bio)
	}
	if req.Password != "" {
		if !validPassword(req.Password) {
			fields["password"] = "must be 6-30 letters and digits"
		} else if hash, err := utils.HashPassword(req.Password); err == nil {
			user.PasswordHash = hash
		}
	}

	return fields
}

// validPassword enforces 6-30 letters and digits only.
func validPassword(s string) bool {
	if len(s) < 6 || len(s) > 30 {
		return false
	}
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return false
	}
	return true
}

// validPhone enforces exactly 10 digits.
func validPhone(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// userResponse shapes a user for API responses, never exposing hashes or
// reset state.
func userResponse(user models.User) gin.H {
	followers := make([]gin.H, 0, len(user.Followers))
	for _, e := range user.Followers {
		followers = append(followers, gin.H{"user_id": e.PeerID})
	}
	followings := make([]gin.H, 0, len(user.Followings))
	for _, e := range user.Followings {
		followings = append(followings, gin.H{"user_id": e.PeerID})
	}
	return gin.H{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"is_admin":      user.IsAdmin,
		"is_active":     user.IsActive,
		"profile_image": user.ProfileImage,
		"phone":         user.Phone,
		"gender":        user.Gender,
		"bio":           user.Bio,
		"provider":      user.Provider,
		"followers":     followers,
		"followings":    followings,
		"created_at":    user.CreatedAt,
	}
}
