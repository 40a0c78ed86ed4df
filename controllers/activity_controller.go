package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/utils"
)

const (
	defaultActivityLogLimit = 50
	maxActivityLogLimit     = 500
	defaultEngagementDays   = 30
	defaultTimelineDays     = 7
	maxActivityDays         = 365
)

var activityTypes = map[string]bool{
	"login":               true,
	"logout":              true,
	"page_view":           true,
	"task_started":        true,
	"task_completed":      true,
	"settings_viewed":     true,
	"stats_viewed":        true,
	"achievements_viewed": true,
	"session_start":       true,
	"session_end":         true,
}

// ActivityController records client interaction events and serves the admin analytics over them.
type ActivityController struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewActivityController(db *gorm.DB, loc *time.Location) *ActivityController {
	return &ActivityController{db: db, loc: loc, now: time.Now}
}

type logEventRequest struct {
	ActionType      string `json:"actionType" binding:"required"`
	PagePath        string `json:"pagePath"`
	SessionID       string `json:"sessionId"`
	SessionDuration *int   `json:"sessionDuration"`
	Metadata        string `json:"metadata"`
}

// LogEvent stores one event; device details come from the request, not the client.
func (a *ActivityController) LogEvent(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req logEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	if !activityTypes[req.ActionType] {
		utils.Error(ctx, http.StatusBadRequest, 40022, "unknown actionType")
		return
	}
	if req.SessionDuration != nil && *req.SessionDuration < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40022, "sessionDuration must not be negative")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ua := ctx.Request.UserAgent()
	device := utils.ParseUserAgent(ua)
	row := models.ActivityLog{
		UserID:          userID,
		ActionType:      req.ActionType,
		PagePath:        req.PagePath,
		SessionID:       req.SessionID,
		SessionDuration: req.SessionDuration,
		IPAddress:       utils.ClientIP(ctx.Request),
		UserAgent:       ua,
		DeviceType:      device.Type,
		Browser:         device.Browser,
		OS:              device.OS,
		Metadata:        req.Metadata,
		CreatedAt:       a.now().UTC(),
	}
	if err := a.db.WithContext(ctx.Request.Context()).Create(&row).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to record activity")
		return
	}
	utils.Success(ctx, gin.H{"success": true, "sessionId": row.SessionID})
}

// Logs returns a client's newest events (admin).
func (a *ActivityController) Logs(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	logs := []models.ActivityLog{}
	if err := a.db.WithContext(ctx.Request.Context()).
		Where("user_id = ?", id).
		Order("created_at DESC, id DESC").
		Limit(queryInt(ctx, "limit", defaultActivityLogLimit, maxActivityLogLimit)).
		Find(&logs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list activity")
		return
	}
	utils.Success(ctx, logs)
}

// Engagement summarizes a client's events over the last ?days (admin).
func (a *ActivityController) Engagement(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	days := queryInt(ctx, "days", defaultEngagementDays, maxActivityDays)
	logs, ok := a.since(ctx, id, days)
	if !ok {
		return
	}
	m := summarizeEngagement(logs, a.loc)
	m.Days = days
	utils.Success(ctx, m)
}

// Timeline returns per-day event counts for the last ?days (admin).
func (a *ActivityController) Timeline(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	days := queryInt(ctx, "days", defaultTimelineDays, maxActivityDays)
	logs, ok := a.since(ctx, id, days)
	if !ok {
		return
	}
	utils.Success(ctx, buildTimeline(logs, a.now().In(a.loc), days))
}

func (a *ActivityController) since(ctx *gin.Context, userID uint, days int) ([]models.ActivityLog, bool) {
	var logs []models.ActivityLog
	cutoff := a.now().UTC().AddDate(0, 0, -days)
	if err := a.db.WithContext(ctx.Request.Context()).
		Where("user_id = ? AND created_at >= ?", userID, cutoff).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list activity")
		return nil, false
	}
	return logs, true
}

// EngagementMetrics is the admin view of how a client uses the app.
type EngagementMetrics struct {
	Days                  int            `json:"days"`
	TotalEvents           int            `json:"totalEvents"`
	EventsByType          map[string]int `json:"eventsByType"`
	Sessions              int            `json:"sessions"`
	AvgSessionDurationSec int            `json:"avgSessionDurationSec"`
	ActiveDays            int            `json:"activeDays"`
	LastActivity          *time.Time     `json:"lastActivity"`
}

// summarizeEngagement expects logs oldest first. Session duration is averaged over session_end events.
func summarizeEngagement(logs []models.ActivityLog, loc *time.Location) EngagementMetrics {
	m := EngagementMetrics{TotalEvents: len(logs), EventsByType: map[string]int{}}
	sessions := map[string]struct{}{}
	days := map[string]struct{}{}
	var durTotal, durCount int
	for i := range logs {
		l := &logs[i]
		m.EventsByType[l.ActionType]++
		if l.SessionID != "" {
			sessions[l.SessionID] = struct{}{}
		}
		days[l.CreatedAt.In(loc).Format(dayLayout)] = struct{}{}
		if l.ActionType == "session_end" && l.SessionDuration != nil {
			durTotal += *l.SessionDuration
			durCount++
		}
		if m.LastActivity == nil || l.CreatedAt.After(*m.LastActivity) {
			t := l.CreatedAt
			m.LastActivity = &t
		}
	}
	m.Sessions = len(sessions)
	m.ActiveDays = len(days)
	if durCount > 0 {
		m.AvgSessionDurationSec = durTotal / durCount
	}
	return m
}

type TimelinePoint struct {
	Date   string `json:"date"`
	Events int    `json:"events"`
}

// buildTimeline returns one point per local day ending today, oldest first, zero-filled.
func buildTimeline(logs []models.ActivityLog, now time.Time, days int) []TimelinePoint {
	counts := map[string]int{}
	for _, l := range logs {
		counts[l.CreatedAt.In(now.Location()).Format(dayLayout)]++
	}
	points := make([]TimelinePoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i).Format(dayLayout)
		points = append(points, TimelinePoint{Date: d, Events: counts[d]})
	}
	return points
}
