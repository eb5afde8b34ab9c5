package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/models"
	"blogicum/utils"
)

// PostController serves the post feeds and post CRUD flows.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// postForm binds the submitted post fields. The author is never bound; it is
// always forced to the caller.
type postForm struct {
	Title       string `form:"title" binding:"required,max=255"`
	Text        string `form:"text" binding:"required"`
	PublishAt   string `form:"publish_at"`
	CategoryID  *uint  `form:"category_id"`
	LocationID  *uint  `form:"location_id"`
	IsPublished *bool  `form:"is_published"`
}

// Index is the global feed: all publicly visible posts, newest first.
func (p *PostController) Index(ctx *gin.Context) {
	page := parsePage(ctx)
	if b, ok := utils.CacheGetBytes(indexCacheKey(page)); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	now := time.Now()
	payload, page, err := fetchFeed(
		p.db.Model(&models.Post{}).Scopes(models.Visible(now)),
		p.db.Model(&models.Post{}).Scopes(models.Visible(now)),
		page,
	)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to list posts")
		return
	}

	// Key on the page actually served so a clamped request cannot store the
	// last page under a fresh key.
	cacheFeedPayload(indexCacheKey(page), payload)
	utils.Success(ctx, payload)
}

// Category is a single category's feed. An unpublished or missing category
// is a not-found regardless of its posts.
func (p *PostController) Category(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))

	var category models.Category
	err := p.db.Where("slug = ? AND is_published = ?", slug, true).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, "category not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load category")
		}
		return
	}

	page := parsePage(ctx)
	if b, ok := utils.CacheGetBytes(categoryCacheKey(slug, page)); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	now := time.Now()
	scoped := func() *gorm.DB {
		return p.db.Model(&models.Post{}).Scopes(models.Visible(now)).
			Where("posts.category_id = ?", category.ID)
	}
	payload, page, err := fetchFeed(scoped(), scoped(), page)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to list posts")
		return
	}
	payload["category"] = category

	cacheFeedPayload(categoryCacheKey(slug, page), payload)
	utils.Success(ctx, payload)
}

// Detail shows one post with its comments, oldest first. Hidden posts are
// not found for everyone but their author.
func (p *PostController) Detail(ctx *gin.Context) {
	post, ok := loadPost(p.db, ctx, ctx.Param("id"))
	if !ok {
		return
	}

	viewerID, _ := currentUserID(ctx)
	if !post.ViewableBy(viewerID, time.Now()) {
		utils.NotFound(ctx, "post not found")
		return
	}

	var comments []models.Comment
	err := p.db.Where("post_id = ?", post.ID).
		Preload("Author").
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to load comments")
		return
	}
	post.CommentCount = int64(len(comments))

	utils.Success(ctx, gin.H{
		"post":     post,
		"comments": comments,
	})
}

// NewForm supplies the choices for the post creation form.
func (p *PostController) NewForm(ctx *gin.Context) {
	choices, err := p.formChoices()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to load form data")
		return
	}
	utils.Success(ctx, choices)
}

// Create stores a new post owned by the caller and redirects to their
// profile. Client-supplied author values are ignored.
func (p *PostController) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var form postForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid post data")
		return
	}

	publishAt, err := parsePublishAt(form.PublishAt)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid publish_at")
		return
	}

	imageURL, err := saveImage(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, err.Error())
		return
	}

	post := models.Post{
		AuthorID:    userID,
		Title:       utils.SanitizePlain(strings.TrimSpace(form.Title)),
		Text:        utils.Sanitize(form.Text),
		PublishAt:   publishAt,
		ImageURL:    imageURL,
		CategoryID:  form.CategoryID,
		LocationID:  form.LocationID,
		IsPublished: form.IsPublished == nil || *form.IsPublished,
	}
	if post.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40013, "title cannot be empty")
		return
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to create post")
		return
	}

	utils.InvalidateByPrefix(utils.FeedCachePrefix)
	utils.Redirect(ctx, profilePath(currentUsername(ctx)))
}

// EditForm returns the post to prefill the edit form, author only.
func (p *PostController) EditForm(ctx *gin.Context) {
	post, ok := loadPost(p.db, ctx, ctx.Param("id"))
	if !ok {
		return
	}
	if !guardPostAuthor(ctx, post) {
		return
	}
	choices, err := p.formChoices()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to load form data")
		return
	}
	choices["post"] = post
	utils.Success(ctx, choices)
}

// Update rewrites a post's fields, author only, then redirects to the
// caller's profile.
func (p *PostController) Update(ctx *gin.Context) {
	post, ok := loadPost(p.db, ctx, ctx.Param("id"))
	if !ok {
		return
	}
	if !guardPostAuthor(ctx, post) {
		return
	}

	var form postForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid post data")
		return
	}

	publishAt, err := parsePublishAt(form.PublishAt)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid publish_at")
		return
	}

	imageURL, err := saveImage(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, err.Error())
		return
	}

	post.Title = utils.SanitizePlain(strings.TrimSpace(form.Title))
	post.Text = utils.Sanitize(form.Text)
	post.PublishAt = publishAt
	post.CategoryID = form.CategoryID
	post.LocationID = form.LocationID
	if form.IsPublished != nil {
		post.IsPublished = *form.IsPublished
	}
	if imageURL != "" {
		post.ImageURL = imageURL
	}
	if post.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40013, "title cannot be empty")
		return
	}

	if err := p.db.Save(post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to update post")
		return
	}

	utils.InvalidateByPrefix(utils.FeedCachePrefix)
	utils.Redirect(ctx, profilePath(currentUsername(ctx)))
}

// Delete removes a post and its comments, author only.
func (p *PostController) Delete(ctx *gin.Context) {
	post, ok := loadPost(p.db, ctx, ctx.Param("id"))
	if !ok {
		return
	}
	if !guardPostAuthor(ctx, post) {
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, post.ID).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50017, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix(utils.FeedCachePrefix)
	utils.Redirect(ctx, profilePath(currentUsername(ctx)))
}

func (p *PostController) formChoices() (gin.H, error) {
	var categories []models.Category
	if err := p.db.Where("is_published = ?", true).Order("title ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	var locations []models.Location
	if err := p.db.Where("is_published = ?", true).Order("name ASC").Find(&locations).Error; err != nil {
		return nil, err
	}
	return gin.H{"categories": categories, "locations": locations}, nil
}

func indexCacheKey(page int) string {
	return fmt.Sprintf("%sindex:page=%d", utils.FeedCachePrefix, page)
}

func categoryCacheKey(slug string, page int) string {
	return fmt.Sprintf("%scat=%s:page=%d", utils.FeedCachePrefix, slug, page)
}

// cacheFeedPayload stores the fully wrapped response so cache hits can be
// written out verbatim.
func cacheFeedPayload(key string, payload gin.H) {
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(key, wrapper, utils.CacheTTL())
}

// parsePublishAt accepts RFC3339 or a plain local datetime; empty means
// publish immediately.
func parsePublishAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", raw, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("unrecognized publish_at format")
}
