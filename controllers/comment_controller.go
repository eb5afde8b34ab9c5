package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/models"
	"blogicum/utils"
)

// CommentController serves the comment flows hanging off a post.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

type commentForm struct {
	Text string `form:"text"`
}

// Create attaches a comment to the target post and redirects back to the
// post detail. An empty submission is dropped without an error and still
// redirects; that mirrors the historical behavior, so it is at least logged.
func (c *CommentController) Create(ctx *gin.Context) {
	var post models.Post
	if err := c.db.First(&post, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, "post not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to load post")
		}
		return
	}

	userID, ok := currentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var form commentForm
	_ = ctx.ShouldBind(&form)
	text := utils.Sanitize(strings.TrimSpace(form.Text))
	if text == "" {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("discarding invalid comment submission on post %d by user %d", post.ID, userID)
		}
		utils.Redirect(ctx, postDetailPath(post.ID))
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: userID,
		Text:     text,
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create comment")
		return
	}

	// Comment counts ride along on cached feed pages.
	utils.InvalidateByPrefix(utils.FeedCachePrefix)
	utils.Redirect(ctx, postDetailPath(post.ID))
}

// Update rewrites a comment's text, author only; anyone else gets the same
// not-found a missing comment would produce.
func (c *CommentController) Update(ctx *gin.Context) {
	comment, ok := loadOwnComment(c.db, ctx, ctx.Param("pk"))
	if !ok {
		return
	}

	var form commentForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid comment data")
		return
	}
	text := utils.Sanitize(strings.TrimSpace(form.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "text cannot be empty")
		return
	}

	comment.Text = text
	if err := c.db.Save(comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to update comment")
		return
	}

	utils.Redirect(ctx, postDetailPath(comment.PostID))
}

// Delete removes a comment, author only.
func (c *CommentController) Delete(ctx *gin.Context) {
	comment, ok := loadOwnComment(c.db, ctx, ctx.Param("pk"))
	if !ok {
		return
	}

	if err := c.db.Delete(comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to delete comment")
		return
	}

	utils.InvalidateByPrefix(utils.FeedCachePrefix)
	utils.Redirect(ctx, postDetailPath(comment.PostID))
}
