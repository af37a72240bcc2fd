package models

import "time"

// Music is a catalog item owned by the user who uploaded it.
type Music struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Artist    string    `gorm:"size:255;not null" json:"artist"`
	Album     string    `gorm:"size:255;not null" json:"album"`
	Genre     string    `gorm:"size:64;not null" json:"genre"`
	Year      int       `gorm:"not null" json:"year"`
	File      string    `gorm:"size:512" json:"file"`
	Poster    string    `gorm:"size:512;not null" json:"poster"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaylistEntry is a user-owned reference into the music catalog. The name
// is denormalized from the track title at insertion time.
type PlaylistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	MusicID   uint      `gorm:"index;not null" json:"music_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
