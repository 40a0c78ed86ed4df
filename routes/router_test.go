package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/app"
	"github.com/cppla/bravesteps/config"
	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/routes"
	"github.com/cppla/bravesteps/seed"
	"github.com/cppla/bravesteps/storage"
	"github.com/cppla/bravesteps/storage/storagetest"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	client models.User
	admin  models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storagetest.Open(t)
	cat, err := seed.Default()
	require.NoError(t, err)
	_, err = seed.Apply(db, cat)
	require.NoError(t, err)

	config.Set(config.AppConfig{
		JWTSecret:          "router-secret",
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		TimeZone:           "UTC",
		RateLimitPerMinute: 6000,
	})
	cfg := config.Get()
	a, err := app.Wire(cfg, zap.NewNop(), db, nil, time.UTC)
	require.NoError(t, err)

	ctx := context.Background()
	client, err := storage.CreateUser(ctx, db, storage.NewUser{Name: "riley", Passcode: "brave-1"})
	require.NoError(t, err)
	admin, err := storage.CreateUser(ctx, db, storage.NewUser{Name: "dr-lee", Passcode: "5786", Role: models.RoleAdmin})
	require.NoError(t, err)

	return &harness{t: t, db: db, router: routes.SetupRouter(a.RouterDeps()), client: client, admin: admin}
}

func (h *harness) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", iphoneUA)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (h *harness) ok(method, path, token string, body, out interface{}) {
	h.t.Helper()
	w, env := h.do(method, path, token, body)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	require.Zero(h.t, env.Code)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(env.Data, out))
	}
}

func (h *harness) login(name, passcode string) string {
	h.t.Helper()
	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	h.ok(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": name, "passcode": passcode}, &out)
	require.NotEmpty(h.t, out.Token)
	return out.Token
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t)

	h.ok(http.MethodGet, "/health", "", nil, nil)

	var appCfg struct {
		TimeZone string `json:"timeZone"`
		XP       struct {
			Base int `json:"base"`
		} `json:"xp"`
	}
	h.ok(http.MethodGet, "/api/v1/config/app", "", nil, &appCfg)
	assert.Equal(t, "UTC", appCfg.TimeZone)
	assert.Equal(t, progression.BaseXP, appCfg.XP.Base)

	w, env := h.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)

	w, env = h.do(http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, env.Code)

	w, env = h.do(http.MethodGet, "/api/v1/tasks", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40105, env.Code)
}

func TestLoginLogoutAndMe(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "riley", "passcode": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40106, env.Code)
	w, env = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "nobody", "passcode": "brave-1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40106, env.Code, "unknown users look like bad passcodes")

	token := h.login("riley", " brave-1 ")

	var me models.User
	h.ok(http.MethodGet, "/api/v1/auth/me", token, nil, &me)
	assert.Equal(t, "riley", me.Name)
	assert.Equal(t, models.RoleClient, me.Role)
	require.NotNil(t, me.LastSignedIn)

	var logins []models.LoginActivity
	require.NoError(t, h.db.Where("user_id = ?", h.client.ID).Find(&logins).Error)
	require.Len(t, logins, 1)
	assert.Equal(t, "mobile / Safari / iOS", logins[0].DeviceInfo)

	h.ok(http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
	w, env = h.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40104, env.Code)
}

func TestLoginLockout(t *testing.T) {
	h := newHarness(t)
	wrong := map[string]string{"username": "riley", "passcode": "0000"}
	for i := 0; i < config.Get().LoginMaxFailures; i++ {
		_, env := h.do(http.MethodPost, "/api/v1/auth/login", "", wrong)
		require.Equal(t, 40106, env.Code)
	}
	w, env := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "riley", "passcode": "brave-1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42902, env.Code)
}

func TestCompletionFlow(t *testing.T) {
	h := newHarness(t)
	token := h.login("riley", "brave-1")

	var tasks []models.Task
	h.ok(http.MethodGet, "/api/v1/tasks", token, nil, &tasks)
	require.Len(t, tasks, 9)
	assert.Equal(t, 1, tasks[0].WeekNumber)

	var current models.Task
	h.ok(http.MethodGet, "/api/v1/tasks/current", token, nil, &current)
	assert.Equal(t, 1, current.WeekNumber)

	w, env := h.do(http.MethodGet, "/api/v1/tasks/week/42", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(env.Data))

	var today *models.Entry
	h.ok(http.MethodGet, "/api/v1/entries/today", token, nil, &today)
	assert.Nil(t, today)

	note := "<b>waved</b> at the neighbour"
	var receipt progression.Receipt
	h.ok(http.MethodPost, "/api/v1/entries", token, gin.H{
		"taskId": current.ID, "anxietyBefore": 7, "anxietyDuring": 3, "usedMedication": false, "winNote": note,
	}, &receipt)
	assert.Contains(t, []int{75, 90}, receipt.XPEarned)
	assert.Equal(t, 1, receipt.NewLevel)
	assert.Equal(t, 1, receipt.NewStreak)
	assert.Equal(t, 4, receipt.AnxietyReduction)
	assert.Len(t, receipt.NewlyUnlockedAchievementIDs, 2)

	w, env = h.do(http.MethodPost, "/api/v1/entries", token, gin.H{"taskId": current.ID, "anxietyBefore": 2, "anxietyDuring": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40030, env.Code)

	h.ok(http.MethodGet, "/api/v1/entries/today", token, nil, &today)
	require.NotNil(t, today)
	require.NotNil(t, today.WinNote)
	assert.Equal(t, "waved at the neighbour", *today.WinNote)
	require.NotNil(t, today.Task)
	assert.Equal(t, current.TaskName, today.Task.TaskName)

	var week struct {
		WeekStart string         `json:"weekStart"`
		Entries   []models.Entry `json:"entries"`
	}
	h.ok(http.MethodGet, "/api/v1/entries/week", token, nil, &week)
	assert.Len(t, week.Entries, 1)
	start, err := progression.ParseDate(week.WeekStart)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, start.Weekday())

	var overview struct {
		TotalXP              int   `json:"totalXp"`
		TotalTasks           int64 `json:"totalTasks"`
		AchievementsUnlocked int64 `json:"achievementsUnlocked"`
		TotalAchievements    int64 `json:"totalAchievements"`
		TotalDamageDealt     int64 `json:"totalDamageDealt"`
	}
	h.ok(http.MethodGet, "/api/v1/stats/overview", token, nil, &overview)
	assert.Equal(t, receipt.XPEarned, overview.TotalXP)
	assert.EqualValues(t, 1, overview.TotalTasks)
	assert.EqualValues(t, 2, overview.AchievementsUnlocked)
	assert.EqualValues(t, 12, overview.TotalAchievements)
	assert.EqualValues(t, 4, overview.TotalDamageDealt)

	var mine []models.UserAchievement
	h.ok(http.MethodGet, "/api/v1/achievements/mine", token, nil, &mine)
	require.Len(t, mine, 2)
	require.NotNil(t, mine[0].Achievement)

	var all []models.Achievement
	h.ok(http.MethodGet, "/api/v1/achievements", token, nil, &all)
	require.Len(t, all, 12)
	assert.Equal(t, "First Step", all[0].Name)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	token := h.login("riley", "brave-1")

	cases := []struct {
		body gin.H
		code int
	}{
		{gin.H{"taskId": 1, "anxietyBefore": 11, "anxietyDuring": 3}, 40020},
		{gin.H{"taskId": 1, "anxietyBefore": 4, "anxietyDuring": -1}, 40020},
		{gin.H{"taskId": 1, "anxietyBefore": 4}, 40003},
		{gin.H{"taskId": 999, "anxietyBefore": 4, "anxietyDuring": 2}, 40021},
	}
	for _, c := range cases {
		w, env := h.do(http.MethodPost, "/api/v1/entries", token, c.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, c.body)
		assert.Equal(t, c.code, env.Code, c.body)
	}

	var n int64
	h.db.Model(&models.Entry{}).Count(&n)
	assert.Zero(t, n)
}

func TestAdminSurface(t *testing.T) {
	h := newHarness(t)
	clientToken := h.login("riley", "brave-1")
	adminToken := h.login("dr-lee", "5786")

	w, env := h.do(http.MethodGet, "/api/v1/admin/clients", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 40301, env.Code)

	h.ok(http.MethodPost, "/api/v1/entries", clientToken, gin.H{"taskId": 1, "anxietyBefore": 6, "anxietyDuring": 5, "usedMedication": true, "winNote": "made it"}, nil)

	var clients []models.User
	h.ok(http.MethodGet, "/api/v1/admin/clients", adminToken, nil, &clients)
	require.Len(t, clients, 1)
	assert.Equal(t, "riley", clients[0].Name)

	base := fmt.Sprintf("/api/v1/admin/clients/%d", h.client.ID)
	var updated models.User
	h.ok(http.MethodPatch, base, adminToken, gin.H{"currentWeek": 2, "timeZone": "America/Chicago"}, &updated)
	assert.Equal(t, 2, updated.CurrentWeek)
	assert.Equal(t, "America/Chicago", updated.TimeZone)

	w, env = h.do(http.MethodPatch, base, adminToken, gin.H{"currentWeek": 99})
	assert.Equal(t, 40021, env.Code)
	w, env = h.do(http.MethodPatch, base, adminToken, gin.H{"timeZone": "Mars/Olympus"})
	assert.Equal(t, 40025, env.Code)
	w, env = h.do(http.MethodPatch, base, adminToken, gin.H{"name": "dr-lee"})
	assert.Equal(t, 40031, env.Code)
	w, env = h.do(http.MethodPatch, "/api/v1/admin/clients/999", adminToken, gin.H{"currentWeek": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var activity struct {
		User            models.User           `json:"user"`
		RecentEntries   []models.Entry        `json:"recentEntries"`
		LastLogin       *models.LoginActivity `json:"lastLogin"`
		WeekCompletions int64                 `json:"weekCompletions"`
	}
	h.ok(http.MethodGet, base+"/activity", adminToken, nil, &activity)
	assert.Len(t, activity.RecentEntries, 1)
	require.NotNil(t, activity.LastLogin)
	assert.EqualValues(t, 1, activity.WeekCompletions)

	var exp storage.Export
	h.ok(http.MethodGet, base+"/export", adminToken, nil, &exp)
	require.Len(t, exp.Entries, 1)
	assert.Equal(t, 1, exp.Entries[0].Week)
	assert.Equal(t, "made it", exp.Entries[0].WinNote)
	assert.Equal(t, 1, exp.TotalEntries)

	w, _ = h.do(http.MethodGet, base+"/export?format=csv", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,week,task,anxietyBefore,anxietyDuring,anxietyReduction,usedMedication,winNote,xpEarned", lines[0])
	assert.Contains(t, lines[1], ",Yes,made it,")

	var recent []models.Entry
	h.ok(http.MethodGet, fmt.Sprintf("/api/v1/entries/recent?user_id=%d", h.client.ID), adminToken, nil, &recent)
	assert.Len(t, recent, 1)
	h.ok(http.MethodGet, fmt.Sprintf("/api/v1/entries/recent?user_id=%d", h.admin.ID), clientToken, nil, &recent)
	assert.Len(t, recent, 1, "clients always read their own history")

	var task models.Task
	h.ok(http.MethodPatch, "/api/v1/admin/tasks/1", adminToken, gin.H{"psychoeducation": "<script>alert(1)</script><p>Anxiety peaks, then falls.</p>", "goalDays": 4}, &task)
	assert.Equal(t, "<p>Anxiety peaks, then falls.</p>", task.Psychoeducation)
	assert.Equal(t, 4, task.GoalDays)
	w, env = h.do(http.MethodPatch, "/api/v1/admin/tasks/1", adminToken, gin.H{"goalDays": 9})
	assert.Equal(t, 40026, env.Code)
	w, env = h.do(http.MethodPatch, "/api/v1/admin/tasks/77", adminToken, gin.H{"goalDays": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var summary struct {
		Summary string `json:"summary"`
	}
	h.ok(http.MethodGet, base+"/summary", adminToken, nil, &summary)
	assert.Equal(t, "Not enough data yet for AI analysis. riley needs to complete more tasks.", summary.Summary)
}

func TestActivityTracking(t *testing.T) {
	h := newHarness(t)
	clientToken := h.login("riley", "brave-1")
	adminToken := h.login("dr-lee", "5786")

	var logged struct {
		SessionID string `json:"sessionId"`
	}
	h.ok(http.MethodPost, "/api/v1/activity", clientToken, gin.H{"actionType": "page_view", "pagePath": "/stats"}, &logged)
	assert.Len(t, logged.SessionID, 36)
	h.ok(http.MethodPost, "/api/v1/activity", clientToken, gin.H{"actionType": "session_end", "sessionId": logged.SessionID, "sessionDuration": 120}, nil)

	w, env := h.do(http.MethodPost, "/api/v1/activity", clientToken, gin.H{"actionType": "teleport"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40022, env.Code)

	base := fmt.Sprintf("/api/v1/admin/clients/%d", h.client.ID)
	var logs []models.ActivityLog
	h.ok(http.MethodGet, base+"/activity-logs?limit=1", adminToken, nil, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "mobile", logs[0].DeviceType)

	var m struct {
		TotalEvents           int            `json:"totalEvents"`
		EventsByType          map[string]int `json:"eventsByType"`
		Sessions              int            `json:"sessions"`
		AvgSessionDurationSec int            `json:"avgSessionDurationSec"`
		ActiveDays            int            `json:"activeDays"`
	}
	h.ok(http.MethodGet, base+"/engagement", adminToken, nil, &m)
	assert.Equal(t, 2, m.TotalEvents)
	assert.Equal(t, 1, m.Sessions)
	assert.Equal(t, 120, m.AvgSessionDurationSec)
	assert.Equal(t, 1, m.ActiveDays)

	var timeline []struct {
		Date   string `json:"date"`
		Events int    `json:"events"`
	}
	h.ok(http.MethodGet, base+"/timeline", adminToken, nil, &timeline)
	require.Len(t, timeline, 7)
	assert.Equal(t, 2, timeline[6].Events)
}

func TestNotificationSettingsAndReminders(t *testing.T) {
	h := newHarness(t)
	clientToken := h.login("riley", "brave-1")
	adminToken := h.login("dr-lee", "5786")

	var s struct {
		Enabled      bool   `json:"enabled"`
		ReminderTime string `json:"reminderTime"`
	}
	h.ok(http.MethodGet, "/api/v1/notifications/settings", clientToken, nil, &s)
	assert.False(t, s.Enabled)
	assert.Equal(t, "09:00", s.ReminderTime)

	w, env := h.do(http.MethodPut, "/api/v1/notifications/settings", clientToken, gin.H{"reminderTime": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40023, env.Code)

	h.ok(http.MethodPut, "/api/v1/notifications/settings", clientToken, gin.H{"enabled": true, "reminderTime": "18:30"}, &s)
	assert.True(t, s.Enabled)
	assert.Equal(t, "18:30", s.ReminderTime)

	w, _ = h.do(http.MethodPost, "/api/v1/admin/notifications/reminders", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var rep struct {
		UsersChecked int `json:"usersChecked"`
	}
	h.ok(http.MethodPost, "/api/v1/admin/notifications/reminders", adminToken, nil, &rep)
	assert.Equal(t, 1, rep.UsersChecked)

	var sent struct {
		Success bool `json:"success"`
	}
	h.ok(http.MethodPost, "/api/v1/admin/notifications/test", adminToken, nil, &sent)
	assert.True(t, sent.Success)
}

func TestInsightFallbacksWithoutLLM(t *testing.T) {
	h := newHarness(t)
	token := h.login("riley", "brave-1")

	var g struct {
		Greeting     string `json:"greeting"`
		StreakAtRisk bool   `json:"streakAtRisk"`
	}
	h.ok(http.MethodGet, "/api/v1/ai/greeting", token, nil, &g)
	assert.True(t, strings.HasPrefix(g.Greeting, "Good "))
	assert.True(t, strings.HasSuffix(g.Greeting, "riley."))
	assert.False(t, g.StreakAtRisk)

	var wi struct {
		HasEnoughData bool `json:"hasEnoughData"`
	}
	h.ok(http.MethodGet, "/api/v1/ai/weekly-insights", token, nil, &wi)
	assert.False(t, wi.HasEnoughData)

	var tip struct {
		Category string `json:"category"`
	}
	h.ok(http.MethodGet, "/api/v1/ai/tip", token, nil, &tip)
	assert.Equal(t, "getting-started", tip.Category)

	var msg struct {
		Message string `json:"message"`
	}
	h.ok(http.MethodPost, "/api/v1/ai/completion-message", token, gin.H{"taskName": "The Mailbox", "anxietyBefore": 5, "anxietyDuring": 3}, &msg)
	assert.Equal(t, "Nice work sticking with The Mailbox and bringing anxiety down 2 points.", msg.Message)
}
