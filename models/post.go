package models

import "time"

// Post is the engagement aggregate: a media post with its embedded
// comments, likes, dislikes and share counter. Child rows are only ever
// mutated through their owning post.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Image      string    `gorm:"size:512;not null" json:"image"`
	Category   string    `gorm:"size:64" json:"category,omitempty"`
	ShareCount int       `gorm:"default:0" json:"share_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments   []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments"`
	Likes      []Like    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"likes"`
	Dislikes   []Dislike `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"dislikes"`
}

// Like marks a post as liked by a user, at most once per user per post.
// Likes and dislikes are independent: holding both at once is allowed.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Dislike mirrors Like with the opposite sentiment.
type Dislike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
