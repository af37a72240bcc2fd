package models

import (
	"time"

	"gorm.io/gorm"
)

// Gender values accepted on user profiles.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// User represents an account. Passwords are stored as bcrypt hashes only;
// social-auth accounts carry an empty hash and can never log in with a password.
type User struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	Name                   string         `gorm:"size:64;not null" json:"name"`
	Email                  string         `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash           string         `gorm:"size:255" json:"-"`
	Provider               string         `gorm:"size:32" json:"provider,omitempty"`
	ExternalID             string         `gorm:"size:255;index" json:"-"`
	ProfileImage           string         `gorm:"size:512" json:"profile_image"`
	Phone                  string         `gorm:"size:20" json:"phone"`
	Gender                 string         `gorm:"size:8" json:"gender,omitempty"`
	Bio                    string         `gorm:"size:255" json:"bio"`
	IsActive               bool           `gorm:"default:true" json:"is_active"`
	IsAdmin                bool           `gorm:"default:false" json:"is_admin"`
	PasswordResetTokenHash string         `gorm:"size:64" json:"-"`
	PasswordResetExpiry    *time.Time     `json:"-"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
	Followers              []FollowerEdge  `gorm:"constraint:OnDelete:CASCADE;" json:"followers"`
	Followings             []FollowingEdge `gorm:"constraint:OnDelete:CASCADE;" json:"followings"`
	Playlist               []PlaylistEntry `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// FollowerEdge records that PeerID follows the owning user.
// Followers and followings live in two separate edge tables so that
// follow/unfollow stays a dual write against the two user aggregates.
type FollowerEdge struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	PeerID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"-"`
}

// TableName keeps the edge table named after the array it replaces.
func (FollowerEdge) TableName() string { return "user_followers" }

// FollowingEdge records that the owning user follows PeerID.
type FollowingEdge struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	PeerID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"-"`
}

func (FollowingEdge) TableName() string { return "user_followings" }
