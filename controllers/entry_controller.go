package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// EntryController records completions and lists a user's history.
type EntryController struct {
	db     *gorm.DB
	engine *progression.Engine
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time
}

func NewEntryController(db *gorm.DB, engine *progression.Engine, loc *time.Location, log *zap.Logger) *EntryController {
	if log == nil {
		log = zap.NewNop()
	}
	return &EntryController{db: db, engine: engine, loc: loc, log: log, now: time.Now}
}

type createEntryRequest struct {
	TaskID         uint    `json:"taskId" binding:"required"`
	AnxietyBefore  *int    `json:"anxietyBefore" binding:"required"`
	AnxietyDuring  *int    `json:"anxietyDuring" binding:"required"`
	UsedMedication bool    `json:"usedMedication"`
	WinNote        *string `json:"winNote"`
}

// Create submits today's completion through the progression engine.
func (e *EntryController) Create(ctx *gin.Context) {
	var req createEntryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	user, ok := currentUser(ctx, e.db)
	if !ok {
		return
	}

	var tasks int64
	if err := e.db.WithContext(ctx.Request.Context()).Model(&models.Task{}).Where("id = ?", req.TaskID).Count(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load task")
		return
	}
	if tasks == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40021, "unknown task")
		return
	}

	var note *string
	if req.WinNote != nil {
		if s := utils.PlainText(*req.WinNote); s != "" {
			note = &s
		}
	}

	receipt, err := e.engine.Submit(ctx.Request.Context(), progression.Submission{
		UserID:         user.ID,
		TaskID:         req.TaskID,
		AnxietyBefore:  *req.AnxietyBefore,
		AnxietyDuring:  *req.AnxietyDuring,
		UsedMedication: req.UsedMedication,
		WinNote:        note,
		Now:            localNow(&user, e.loc, e.now),
	})
	if err != nil {
		var serr *progression.StorageError
		if errors.As(err, &serr) {
			e.log.Error("submit completion failed", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		respondSubmitError(ctx, err)
		return
	}
	utils.Success(ctx, receipt)
}

// Recent lists the newest entries. Admins may pass user_id to read a client's history.
func (e *EntryController) Recent(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if v := ctx.Query("user_id"); v != "" && isAdmin(ctx) {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40050, "invalid user_id")
			return
		}
		userID = uint(n)
	}

	entries, err := recentEntries(ctx, e.db, userID, queryInt(ctx, "limit", defaultRecentLimit, maxRecentLimit))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list entries")
		return
	}
	utils.Success(ctx, entries)
}

// Today returns today's entry in the user's zone, or null.
func (e *EntryController) Today(ctx *gin.Context) {
	user, ok := currentUser(ctx, e.db)
	if !ok {
		return
	}
	entry, err := entryOn(ctx, e.db, user.ID, progression.DateOf(localNow(&user, e.loc, e.now)))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load entry")
		return
	}
	utils.Success(ctx, entry)
}

// Week returns the entries of the user's current Monday..Sunday week, oldest first.
func (e *EntryController) Week(ctx *gin.Context) {
	user, ok := currentUser(ctx, e.db)
	if !ok {
		return
	}
	start := progression.DateOf(localNow(&user, e.loc, e.now)).WeekStart()
	end := start.AddDays(6)

	entries := []models.Entry{}
	if err := e.db.WithContext(ctx.Request.Context()).
		Preload("Task").
		Where("user_id = ? AND completion_day >= ? AND completion_day <= ?", user.ID, start.String(), end.String()).
		Order("completion_day ASC").
		Find(&entries).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list entries")
		return
	}
	utils.Success(ctx, gin.H{
		"weekStart": start.String(),
		"weekEnd":   end.String(),
		"entries":   entries,
	})
}
