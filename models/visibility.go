package models

import (
	"time"

	"gorm.io/gorm"
)

// VisibleAt reports whether the post is publicly listable at time t.
// A post is visible when its own flag is set, its category exists and is
// published, and the scheduled publish time has passed. The location flag
// does not participate. The Category association must be loaded.
func (p *Post) VisibleAt(t time.Time) bool {
	if !p.IsPublished {
		return false
	}
	if p.Category == nil || !p.Category.IsPublished {
		return false
	}
	return !p.PublishAt.After(t)
}

// ViewableBy reports whether a post's detail page may be shown to the given
// viewer. The author always sees their own post; everyone else is subject to
// the visibility predicate. A zero viewerID means anonymous.
func (p *Post) ViewableBy(viewerID uint, t time.Time) bool {
	if viewerID != 0 && viewerID == p.AuthorID {
		return true
	}
	return p.VisibleAt(t)
}

// Visible is a query scope applying the public visibility predicate.
// The inner join intentionally drops posts without a category.
func Visible(t time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Joins("JOIN categories ON categories.id = posts.category_id").
			Where("posts.is_published = ? AND categories.is_published = ? AND posts.publish_at <= ?",
				true, true, t)
	}
}

// FeedOrder sorts feeds newest publish time first. The id tie-break keeps
// ordering stable within one response.
func FeedOrder(db *gorm.DB) *gorm.DB {
	return db.Order("posts.publish_at DESC, posts.id DESC")
}

// LoadCommentCounts hydrates CommentCount for one page of posts with a single
// grouped query.
func LoadCommentCounts(db *gorm.DB, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
	}

	type row struct {
		PostID uint
		N      int64
	}
	var rows []row
	err := db.Model(&Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	for i := range posts {
		posts[i].CommentCount = counts[posts[i].ID]
	}
	return nil
}
