package controllers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/config"
	"blogicum/middleware"
	"blogicum/models"
	"blogicum/utils"
)

// currentUserID returns the authenticated caller's ID, or false when the
// request is anonymous.
func currentUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func currentUsername(ctx *gin.Context) string {
	value, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return ""
	}
	name, _ := value.(string)
	return name
}

func postDetailPath(postID uint) string {
	return fmt.Sprintf("/posts/%d/", postID)
}

func profilePath(username string) string {
	return "/profile/" + username + "/"
}

// loadPost fetches a post with its associations, answering 404 when the id
// does not resolve.
func loadPost(db *gorm.DB, ctx *gin.Context, idParam string) (*models.Post, bool) {
	var post models.Post
	err := db.Preload("Author").Preload("Category").Preload("Location").
		First(&post, "posts.id = ?", idParam).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, "post not found")
		} else {
			utils.Error(ctx, 500, 50001, "failed to load post")
		}
		return nil, false
	}
	return &post, true
}

// guardPostAuthor enforces the post mutation policy: a non-author is not
// told off with an error page but bounced to the post's detail view.
func guardPostAuthor(ctx *gin.Context, post *models.Post) bool {
	userID, ok := currentUserID(ctx)
	if !ok || post.AuthorID != userID {
		utils.Redirect(ctx, postDetailPath(post.ID))
		return false
	}
	return true
}

// loadOwnComment enforces the comment mutation policy: both a missing
// comment and a foreign one yield the same not-found, so existence is not
// leaked.
func loadOwnComment(db *gorm.DB, ctx *gin.Context, pkParam string) (*models.Comment, bool) {
	var comment models.Comment
	if err := db.First(&comment, "id = ?", pkParam).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, "comment not found")
		} else {
			utils.Error(ctx, 500, 50002, "failed to load comment")
		}
		return nil, false
	}
	userID, ok := currentUserID(ctx)
	if !ok || comment.AuthorID != userID {
		utils.NotFound(ctx, "comment not found")
		return nil, false
	}
	return &comment, true
}

// parsePage reads the requested page number; anything unusable means the
// first page.
func parsePage(ctx *gin.Context) int {
	if n, err := strconv.Atoi(ctx.Query("page")); err == nil && n > 0 {
		return n
	}
	return 1
}

// fetchFeed runs the shared feed pipeline on an already-scoped query:
// count, clamp the page into range, fetch one page ordered newest first and
// hydrate comment counts. Every feed shares the configured page size. The
// page actually served is returned so callers can key caches on it.
func fetchFeed(q *gorm.DB, countDB *gorm.DB, page int) (gin.H, int, error) {
	pageSize := config.Get().PageSize

	var total int64
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Out-of-range pages resolve to the last page; an empty feed is page 1.
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		page = 1
	} else if page > totalPages {
		page = totalPages
	}

	var posts []models.Post
	err := q.Preload("Author").Preload("Category").Preload("Location").
		Scopes(models.FeedOrder).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}

	if err := models.LoadCommentCounts(q.Session(&gorm.Session{NewDB: true}), posts); err != nil {
		return nil, 0, err
	}

	return gin.H{
		"items": posts,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
		},
	}, page, nil
}
