package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/storage"
	"github.com/cppla/bravesteps/utils"
)

const (
	clientActivityEntries = 10
	maxGoalDays           = 7
)

// AdminController is the therapist surface over clients and the protocol.
type AdminController struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewAdminController(db *gorm.DB, log *zap.Logger) *AdminController {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminController{db: db, log: log, now: time.Now}
}

// ListClients returns every client account ordered by name.
func (a *AdminController) ListClients(ctx *gin.Context) {
	clients := []models.User{}
	if err := a.db.WithContext(ctx.Request.Context()).
		Where("role = ?", models.RoleClient).
		Order("name ASC").
		Find(&clients).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to list clients")
		return
	}
	utils.Success(ctx, clients)
}

// ClientUpdate is a partial update of a client; nil fields are left alone.
type ClientUpdate struct {
	CurrentWeek *int    `json:"currentWeek"`
	Name        *string `json:"name"`
	TimeZone    *string `json:"timeZone"`
}

// UpdateClient moves a client through the protocol or fixes their profile.
func (a *AdminController) UpdateClient(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req ClientUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	var user models.User
	if !loadUser(ctx, a.db, id, &user) {
		return
	}

	db := a.db.WithContext(ctx.Request.Context())
	updates := map[string]interface{}{}
	if req.CurrentWeek != nil {
		var n int64
		if err := db.Model(&models.Task{}).Where("week_number = ?", *req.CurrentWeek).Count(&n).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load task")
			return
		}
		if n == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40021, "invalid week number")
			return
		}
		updates["current_week"] = *req.CurrentWeek
	}
	if req.Name != nil {
		name := utils.PlainText(*req.Name)
		if name == "" {
			utils.Error(ctx, http.StatusBadRequest, 40024, "name must not be empty")
			return
		}
		updates["name"] = name
	}
	if req.TimeZone != nil {
		tz := strings.TrimSpace(*req.TimeZone)
		if tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				utils.Error(ctx, http.StatusBadRequest, 40025, "unknown time zone")
				return
			}
		}
		updates["time_zone"] = tz
	}
	if len(updates) == 0 {
		utils.Success(ctx, user)
		return
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		if storage.IsDuplicateKey(err) {
			utils.Error(ctx, http.StatusBadRequest, 40031, "name already taken")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to update client")
		return
	}
	if !loadUser(ctx, a.db, id, &user) {
		return
	}
	utils.Success(ctx, user)
}

// ClientActivity returns the client, recent entries, last login and completions in the last 7 days.
func (a *AdminController) ClientActivity(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var user models.User
	if !loadUser(ctx, a.db, id, &user) {
		return
	}
	db := a.db.WithContext(ctx.Request.Context())

	entries, err := recentEntries(ctx, a.db, id, clientActivityEntries)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list entries")
		return
	}

	var lastLogin *models.LoginActivity
	var login models.LoginActivity
	err = db.Where("user_id = ?", id).Order("login_at DESC, id DESC").First(&login).Error
	switch {
	case err == nil:
		lastLogin = &login
	case !errors.Is(err, gorm.ErrRecordNotFound):
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to load login activity")
		return
	}

	var weekCompletions int64
	if err := db.Model(&models.Entry{}).
		Where("user_id = ? AND completed_at >= ?", id, a.now().UTC().Add(-7*24*time.Hour)).
		Count(&weekCompletions).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to count entries")
		return
	}

	utils.Success(ctx, gin.H{
		"user":            user,
		"recentEntries":   entries,
		"lastLogin":       lastLogin,
		"weekCompletions": weekCompletions,
	})
}

// ExportClient returns every entry as JSON, or as a CSV download with ?format=csv.
func (a *AdminController) ExportClient(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	exp, err := storage.ClientExport(ctx.Request.Context(), a.db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	if err != nil {
		a.log.Error("export client failed", zap.Uint("user_id", id), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50083, "failed to export client")
		return
	}

	if strings.EqualFold(ctx.Query("format"), "csv") {
		ctx.Header("Content-Type", "text/csv; charset=utf-8")
		ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="client-%d-%s.csv"`, id, a.now().UTC().Format(dayLayout)))
		ctx.Status(http.StatusOK)
		if err := storage.WriteCSV(ctx.Writer, exp.Entries); err != nil {
			a.log.Warn("write csv export failed", zap.Uint("user_id", id), zap.Error(err))
		}
		return
	}
	utils.Success(ctx, exp)
}

// TaskUpdate edits one protocol week; nil fields are left alone.
type TaskUpdate struct {
	TaskName         *string `json:"taskName"`
	TaskDescription  *string `json:"taskDescription"`
	QuestDescription *string `json:"questDescription"`
	Psychoeducation  *string `json:"psychoeducation"`
	GoalDays         *int    `json:"goalDays"`
}

// UpdateTask lets the therapist revise task copy and psychoeducation.
func (a *AdminController) UpdateTask(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req TaskUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	db := a.db.WithContext(ctx.Request.Context())
	var task models.Task
	if err := db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load task")
		return
	}

	updates := map[string]interface{}{}
	if req.TaskName != nil {
		name := utils.PlainText(*req.TaskName)
		if name == "" {
			utils.Error(ctx, http.StatusBadRequest, 40024, "taskName must not be empty")
			return
		}
		updates["task_name"] = name
	}
	if req.TaskDescription != nil {
		updates["task_description"] = utils.PlainText(*req.TaskDescription)
	}
	if req.QuestDescription != nil {
		updates["quest_description"] = utils.PlainText(*req.QuestDescription)
	}
	if req.Psychoeducation != nil {
		updates["psychoeducation"] = utils.Sanitize(*req.Psychoeducation)
	}
	if req.GoalDays != nil {
		if *req.GoalDays < 1 || *req.GoalDays > maxGoalDays {
			utils.Error(ctx, http.StatusBadRequest, 40026, "goalDays must be between 1 and 7")
			return
		}
		updates["goal_days"] = *req.GoalDays
	}
	if len(updates) > 0 {
		if err := db.Model(&task).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50084, "failed to update task")
			return
		}
		if err := db.First(&task, id).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load task")
			return
		}
	}
	utils.Success(ctx, task)
}
