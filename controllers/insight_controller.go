package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/insights"
	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

// InsightController exposes the coach texts. Every endpoint answers even without an LLM.
type InsightController struct {
	db    *gorm.DB
	coach *insights.Coach
	loc   *time.Location
	now   func() time.Time
}

func NewInsightController(db *gorm.DB, coach *insights.Coach, loc *time.Location) *InsightController {
	return &InsightController{db: db, coach: coach, loc: loc, now: time.Now}
}

func (i *InsightController) CompletionMessage(ctx *gin.Context) {
	var in insights.CompletionInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	user, ok := currentUser(ctx, i.db)
	if !ok {
		return
	}
	in.Name = user.Name
	if in.CurrentStreak == 0 {
		in.CurrentStreak = user.CurrentStreak
	}
	if in.WinNote != nil {
		s := utils.PlainText(*in.WinNote)
		in.WinNote = &s
	}
	utils.Success(ctx, gin.H{"message": i.coach.CompletionMessage(ctx.Request.Context(), in)})
}

func (i *InsightController) WeeklyInsights(ctx *gin.Context) {
	user, entries, ok := i.userWithEntries(ctx, insights.InsightWindow)
	if !ok {
		return
	}
	utils.Success(ctx, i.coach.WeeklyInsight(ctx.Request.Context(), user.Name, entries))
}

func (i *InsightController) Greeting(ctx *gin.Context) {
	user, ok := currentUser(ctx, i.db)
	if !ok {
		return
	}
	now := localNow(&user, i.loc, i.now)
	today, err := entryOn(ctx, i.db, user.ID, progression.DateOf(now))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load entry")
		return
	}
	utils.Success(ctx, i.coach.Greeting(ctx.Request.Context(), insights.GreetingInput{
		Name:           user.Name,
		Hour:           now.Hour(),
		CurrentStreak:  user.CurrentStreak,
		LongestStreak:  user.LongestStreak,
		Level:          user.CurrentLevel,
		TotalXP:        user.TotalXP,
		CurrentWeek:    user.CurrentWeek,
		CompletedToday: today != nil,
	}))
}

func (i *InsightController) Tip(ctx *gin.Context) {
	user, entries, ok := i.userWithEntries(ctx, insights.TipWindow)
	if !ok {
		return
	}
	day := progression.DateOf(localNow(&user, i.loc, i.now)).String()
	utils.Success(ctx, i.coach.TipOfDay(ctx.Request.Context(), user.ID, day, entries))
}

// ClientSummary is the therapist view of /admin/clients/:id/summary.
func (i *InsightController) ClientSummary(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var user models.User
	if !loadUser(ctx, i.db, id, &user) {
		return
	}
	entries, err := recentEntries(ctx, i.db, user.ID, insights.InsightWindow)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list entries")
		return
	}
	utils.Success(ctx, i.coach.ClientSummary(ctx.Request.Context(), user, entries))
}

func (i *InsightController) userWithEntries(ctx *gin.Context, limit int) (models.User, []models.Entry, bool) {
	user, ok := currentUser(ctx, i.db)
	if !ok {
		return user, nil, false
	}
	entries, err := recentEntries(ctx, i.db, user.ID, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list entries")
		return user, nil, false
	}
	return user, entries, true
}
