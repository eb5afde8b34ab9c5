package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"blogicum/models"
	"blogicum/utils"
)

// ProfileController serves the user profile feed and self-service editing.
type ProfileController struct {
	db *gorm.DB
}

// NewProfileController creates a new ProfileController instance.
func NewProfileController(db *gorm.DB) *ProfileController {
	return &ProfileController{db: db}
}

type profileForm struct {
	FirstName string `form:"first_name" binding:"max=64"`
	LastName  string `form:"last_name" binding:"max=64"`
	Email     string `form:"email" binding:"omitempty,email"`
	Username  string `form:"username" binding:"required,max=64"`
}

// Show lists a user's posts. The owner sees everything they wrote, even
// unpublished and future-dated posts; everyone else only the visible subset.
func (p *ProfileController) Show(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))

	var profile models.User
	if err := p.db.Where("username = ?", username).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, "user not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load user")
		}
		return
	}

	viewerID, _ := currentUserID(ctx)
	isOwner := viewerID != 0 && viewerID == profile.ID

	now := time.Now()
	scoped := func() *gorm.DB {
		q := p.db.Model(&models.Post{}).Where("posts.author_id = ?", profile.ID)
		if !isOwner {
			q = q.Scopes(models.Visible(now))
		}
		return q
	}

	payload, _, err := fetchFeed(scoped(), scoped(), parsePage(ctx))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list posts")
		return
	}
	payload["profile"] = publicProfile(profile)

	utils.Success(ctx, payload)
}

// EditForm returns the caller's editable profile fields. Any profile other
// than one's own is a not-found.
func (p *ProfileController) EditForm(ctx *gin.Context) {
	user, ok := p.loadOwnProfile(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"email":      user.Email,
		"username":   user.Username,
	})
}

// Update binds the submitted profile fields, self only. Validation failures
// come back as field errors for the form to re-render.
func (p *ProfileController) Update(ctx *gin.Context) {
	user, ok := p.loadOwnProfile(ctx)
	if !ok {
		return
	}

	var form profileForm
	if err := ctx.ShouldBind(&form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := gin.H{}
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = fe.Tag()
			}
			utils.Respond(ctx, http.StatusBadRequest, 40030, "invalid profile data", gin.H{"errors": fields})
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid profile data")
		return
	}

	newUsername := strings.TrimSpace(form.Username)
	if newUsername != user.Username {
		var existing models.User
		if err := p.db.Where("username = ?", newUsername).First(&existing).Error; err == nil {
			utils.Respond(ctx, http.StatusBadRequest, 40031, "invalid profile data",
				gin.H{"errors": gin.H{"username": "taken"}})
			return
		}
	}

	user.FirstName = utils.SanitizePlain(strings.TrimSpace(form.FirstName))
	user.LastName = utils.SanitizePlain(strings.TrimSpace(form.LastName))
	user.Email = strings.TrimSpace(form.Email)
	user.Username = newUsername

	if err := p.db.Save(user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to update profile")
		return
	}

	// The username travels inside the JWT; reissue so later requests and
	// redirects carry the new one.
	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to refresh token")
		return
	}
	setTokenCookie(ctx, token)

	utils.Success(ctx, gin.H{
		"token":   token,
		"profile": publicProfile(*user),
		"email":   user.Email,
	})
}

// loadOwnProfile resolves the path username and enforces the self-only rule.
// Acting on someone else's profile is indistinguishable from a missing one.
func (p *ProfileController) loadOwnProfile(ctx *gin.Context) (*models.User, bool) {
	username := strings.TrimSpace(ctx.Param("username"))

	var user models.User
	if err := p.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, "user not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load user")
		}
		return nil, false
	}

	callerID, ok := currentUserID(ctx)
	if !ok || callerID != user.ID {
		utils.NotFound(ctx, "user not found")
		return nil, false
	}
	return &user, true
}

func publicProfile(u models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}
