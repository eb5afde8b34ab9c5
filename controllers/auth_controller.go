package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/config"
	"blogicum/models"
	"blogicum/utils"
)

// AuthController handles registration, login and session management.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username  string `json:"username" binding:"required,min=3,max=64"`
		Email     string `json:"email" binding:"omitempty,email"`
		Password  string `json:"password" binding:"required,min=6,max=72"`
		FirstName string `json:"first_name" binding:"max=64"`
		LastName  string `json:"last_name" binding:"max=64"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)

	var existing models.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to check username")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to hash password")
		return
	}

	user := models.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		FirstName:    utils.SanitizePlain(strings.TrimSpace(req.FirstName)),
		LastName:     utils.SanitizePlain(strings.TrimSpace(req.LastName)),
		PasswordHash: hash,
	}
	if err := a.db.Create(&user).Error; err != nil {
		// The pre-check races with concurrent registrations; the unique index
		// is the real guard.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create user")
		return
	}

	utils.Success(ctx, gin.H{"user": publicProfile(user)})
}

// Login verifies user credentials and issues a JWT. The token is returned in
// the body and also set as a cookie for browser flows.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to generate token")
		return
	}
	setTokenCookie(ctx, token)

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  publicProfile(user),
	})
}

// Logout blacklists the presented token until its natural expiration and
// clears the cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := bearerOrCookieToken(ctx)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "missing token")
		return
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(time.Duration(config.Get().TokenTTLHours) * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	ctx.SetCookie("token", "", -1, "/", "", false, true)

	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated caller's account.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.NotFound(ctx, "user not found")
		return
	}

	payload := publicProfile(user)
	payload["email"] = user.Email
	utils.Success(ctx, payload)
}

// LoginPage is the redirect target for anonymous callers of protected
// routes. Rendering is left to the client; the JSON makes the contract
// explicit.
func LoginPage(ctx *gin.Context) {
	utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required, POST /auth/login")
}

func setTokenCookie(ctx *gin.Context, token string) {
	maxAge := config.Get().TokenTTLHours * 3600
	ctx.SetCookie("token", token, maxAge, "/", "", false, true)
}

func bearerOrCookieToken(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := ctx.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
