package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/middleware"
	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

const dayLayout = "2006-01-02"

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func isAdmin(ctx *gin.Context) bool {
	return ctx.GetString(middleware.ContextRoleKey) == models.RoleAdmin
}

// currentUser loads the authenticated user or writes the error response.
func currentUser(ctx *gin.Context, db *gorm.DB) (models.User, bool) {
	var user models.User
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return user, false
	}
	if !loadUser(ctx, db, userID, &user) {
		return user, false
	}
	return user, true
}

func loadUser(ctx *gin.Context, db *gorm.DB, id uint, user *models.User) bool {
	if err := db.WithContext(ctx.Request.Context()).First(user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load user")
		return false
	}
	return true
}

// pathID parses a positive numeric path parameter.
func pathID(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// queryInt returns the query value clamped to [1, max], or def when absent or invalid.
func queryInt(ctx *gin.Context, key string, def, max int) int {
	v := strings.TrimSpace(ctx.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// localNow is the current instant in the user's zone.
func localNow(user *models.User, fallback *time.Location, now func() time.Time) time.Time {
	return now().In(user.Location(fallback))
}

func recentEntries(ctx *gin.Context, db *gorm.DB, userID uint, limit int) ([]models.Entry, error) {
	entries := []models.Entry{}
	q := db.WithContext(ctx.Request.Context()).
		Preload("Task").
		Where("user_id = ?", userID).
		Order("completed_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

func entryOn(ctx *gin.Context, db *gorm.DB, userID uint, day progression.Date) (*models.Entry, error) {
	var entry models.Entry
	err := db.WithContext(ctx.Request.Context()).
		Preload("Task").
		Where("user_id = ? AND completion_day = ?", userID, day.String()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// respondSubmitError maps engine errors onto the response envelope.
func respondSubmitError(ctx *gin.Context, err error) {
	var verr *progression.ValidationError
	switch {
	case errors.Is(err, progression.ErrDuplicateCompletion):
		utils.Error(ctx, http.StatusBadRequest, 40030, "task already completed today")
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40020, verr.Error())
	case errors.Is(err, progression.ErrUnknownUser):
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to record completion")
	}
}
