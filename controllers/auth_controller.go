package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/middleware"
	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/utils"
)

// AuthController handles passcode login and session tokens.
type AuthController struct {
	db        *gorm.DB
	blacklist *utils.TokenBlacklist
	guard     *utils.LoginGuard
	ttl       time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthController builds the controller; guard may be nil to disable lockouts.
func NewAuthController(db *gorm.DB, blacklist *utils.TokenBlacklist, guard *utils.LoginGuard, ttl time.Duration, log *zap.Logger) *AuthController {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthController{db: db, blacklist: blacklist, guard: guard, ttl: ttl, log: log, now: time.Now}
}

// Login verifies name + passcode and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Passcode string `json:"passcode" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	ip := utils.ClientIP(ctx.Request)
	if a.guard.Banned(ctx.Request.Context(), ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many failed logins, try again later")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx.Request.Context()).Where("name = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load user")
			return
		}
		a.loginFailed(ctx, ip)
		return
	}

	if user.PasscodeHash == "" || !utils.CheckPasscode(user.PasscodeHash, strings.TrimSpace(req.Passcode)) {
		a.loginFailed(ctx, ip)
		return
	}
	a.guard.Reset(ctx.Request.Context(), ip)

	token, err := utils.GenerateToken(user.ID, user.Name, user.Role, a.ttl)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	now := a.now().UTC()
	ua := ctx.Request.UserAgent()
	login := models.LoginActivity{
		UserID:     user.ID,
		LoginAt:    now,
		IPAddress:  ip,
		UserAgent:  ua,
		DeviceInfo: utils.ParseUserAgent(ua).Summary(),
	}
	// login bookkeeping must not block the session
	if err := a.db.WithContext(ctx.Request.Context()).Create(&login).Error; err != nil {
		a.log.Warn("record login activity failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	if err := a.db.WithContext(ctx.Request.Context()).Model(&user).Update("last_signed_in", now).Error; err != nil {
		a.log.Warn("update last sign in failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastSignedIn = &now

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

func (a *AuthController) loginFailed(ctx *gin.Context, ip string) {
	if a.guard.Fail(ctx.Request.Context(), ip) {
		a.log.Warn("login locked out", zap.String("ip", ip))
	}
	utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or passcode")
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}
	expiresAt := a.now().Add(a.ttl)
	if v, ok := ctx.Get(middleware.ContextTokenExpiryKey); ok {
		if t, ok := v.(time.Time); ok {
			expiresAt = t
		}
	}

	a.blacklist.Add(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"success": true})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx, a.db)
	if !ok {
		return
	}
	utils.Success(ctx, user)
}
