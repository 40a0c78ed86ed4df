package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/utils"
)

// TaskController serves the weekly exposure protocol.
type TaskController struct {
	db *gorm.DB
}

func NewTaskController(db *gorm.DB) *TaskController {
	return &TaskController{db: db}
}

// ListTasks returns every protocol week in order.
func (t *TaskController) ListTasks(ctx *gin.Context) {
	var tasks []models.Task
	if err := t.db.WithContext(ctx.Request.Context()).Order("week_number ASC").Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to list tasks")
		return
	}
	utils.Success(ctx, tasks)
}

// GetByWeek returns the task for /tasks/week/:week, or null when the week has none.
func (t *TaskController) GetByWeek(ctx *gin.Context) {
	week, err := strconv.Atoi(ctx.Param("week"))
	if err != nil || week < 1 {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid week number")
		return
	}
	t.respondWeek(ctx, week)
}

// CurrentTask returns the task of the user's current protocol week.
func (t *TaskController) CurrentTask(ctx *gin.Context) {
	user, ok := currentUser(ctx, t.db)
	if !ok {
		return
	}
	t.respondWeek(ctx, user.CurrentWeek)
}

func (t *TaskController) respondWeek(ctx *gin.Context, week int) {
	var task models.Task
	err := t.db.WithContext(ctx.Request.Context()).Where("week_number = ?", week).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Success(ctx, nil)
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load task")
		return
	}
	utils.Success(ctx, task)
}
