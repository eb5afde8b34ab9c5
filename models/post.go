package models

import "time"

// Post is a publication created by a user. PublishAt may be in the future
// for scheduled posts. Category and Location are optional; when one of them
// is removed the reference is nulled and the post survives.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"index;not null" json:"author_id"`
	CategoryID  *uint     `gorm:"index" json:"category_id"`
	LocationID  *uint     `json:"location_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	PublishAt   time.Time `gorm:"index;not null" json:"publish_at"`
	ImageURL    string    `gorm:"size:512" json:"image_url"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Author   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Category *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	Location *Location `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"location,omitempty"`
	Comments []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`

	// CommentCount is hydrated per feed page, not stored.
	CommentCount int64 `gorm:"-" json:"comment_count"`
}
