package models

import "time"

// Location is an administrative place tag for posts. The name may be absent.
type Location struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        *string   `gorm:"size:255" json:"name"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}
