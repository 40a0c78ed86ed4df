package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/utils"
)

const (
	InsightWindow      = 14
	TipWindow          = 10
	minInsightEntries  = 3
	minTipEntries      = 2
	minSummaryEntries  = 2
	tipCacheTTL        = 24 * time.Hour
	tipCachePrefix     = "insights:tip:"
	systemCoach        = "You are a warm, encouraging coach for someone doing gradual exposure therapy for agoraphobia. Keep it short, specific and genuine. Never give medical advice."
	systemTherapistAid = "You help a therapist review a client's exposure therapy progress. Be factual, concise and clinically neutral."
)

// Coach produces narrative text for completions and dashboards.
// A nil client is valid and always yields the fallback text.
type Coach struct {
	client ChatClient
	cache  *utils.Cache
	log    *zap.Logger
}

func NewCoach(client ChatClient, cache *utils.Cache, log *zap.Logger) *Coach {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coach{client: client, cache: cache, log: log}
}

// ask returns "" when no client is configured or the call failed.
func (c *Coach) ask(ctx context.Context, op string, req ChatRequest) string {
	if c.client == nil {
		return ""
	}
	out, err := c.client.Complete(ctx, req)
	if err != nil {
		c.log.Warn("llm request failed, using fallback", zap.String("op", op), zap.Error(err))
		return ""
	}
	return out
}

// askJSON decodes a structured reply into out. It reports false on any failure.
func (c *Coach) askJSON(ctx context.Context, op string, req ChatRequest, out interface{}) bool {
	raw := c.ask(ctx, op, req)
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.log.Warn("llm reply is not valid json, using fallback", zap.String("op", op), zap.Error(err))
		return false
	}
	return true
}

func prompt(system, user string) []ChatMessage {
	return []ChatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}}
}

// CompletionInput describes a just-submitted entry.
type CompletionInput struct {
	Name           string  `json:"name"`
	TaskName       string  `json:"taskName" binding:"required"`
	AnxietyBefore  int     `json:"anxietyBefore" binding:"min=0,max=10"`
	AnxietyDuring  int     `json:"anxietyDuring" binding:"min=0,max=10"`
	UsedMedication bool    `json:"usedMedication"`
	WinNote        *string `json:"winNote"`
	CurrentStreak  int     `json:"currentStreak"`
}

// CompletionMessage returns one or two sentences of encouragement.
func (c *Coach) CompletionMessage(ctx context.Context, in CompletionInput) string {
	reduction := in.AnxietyBefore - in.AnxietyDuring
	var b strings.Builder
	fmt.Fprintf(&b, "%s just completed the task %q.\n", displayName(in.Name), in.TaskName)
	fmt.Fprintf(&b, "Anxiety before: %d/10, during: %d/10 (change: %d).\n", in.AnxietyBefore, in.AnxietyDuring, reduction)
	fmt.Fprintf(&b, "Used rescue medication: %t. Current streak: %d days.\n", in.UsedMedication, in.CurrentStreak)
	if in.WinNote != nil && *in.WinNote != "" {
		fmt.Fprintf(&b, "Their note: %q.\n", *in.WinNote)
	}
	b.WriteString("Write a 1-2 sentence encouraging message acknowledging this specific effort.")

	if msg := c.ask(ctx, "completion_message", ChatRequest{Messages: prompt(systemCoach, b.String())}); msg != "" {
		return msg
	}
	return completionFallback(in.TaskName, reduction, in.CurrentStreak)
}

func completionFallback(task string, reduction, streak int) string {
	var msg string
	if reduction > 0 {
		msg = fmt.Sprintf("Nice work sticking with %s and bringing anxiety down %d points.", task, reduction)
	} else {
		msg = fmt.Sprintf("You showed up for %s even while uncomfortable, that consistency matters.", task)
	}
	if streak > 1 {
		msg += fmt.Sprintf(" Streak: %d days. Keep that rhythm going.", streak)
	}
	return msg
}

// InsightStats are the figures a weekly insight was written from.
type InsightStats struct {
	AvgAnxietyBefore string `json:"avgAnxietyBefore"`
	AvgAnxietyDuring string `json:"avgAnxietyDuring"`
	AvgReduction     string `json:"avgReduction"`
	EntriesCount     int    `json:"entriesCount"`
}

type WeeklyInsight struct {
	Insight       string        `json:"insight"`
	HasEnoughData bool          `json:"hasEnoughData"`
	Stats         *InsightStats `json:"stats,omitempty"`
}

// WeeklyInsight summarizes recent entries, newest first. Only the first InsightWindow are used.
func (c *Coach) WeeklyInsight(ctx context.Context, name string, entries []models.Entry) WeeklyInsight {
	entries = head(entries, InsightWindow)
	if len(entries) < minInsightEntries {
		return WeeklyInsight{Insight: "Keep completing tasks to unlock personalized insights about your progress."}
	}
	a := averages(entries)
	stats := &InsightStats{
		AvgAnxietyBefore: fmt.Sprintf("%.1f", a.before),
		AvgAnxietyDuring: fmt.Sprintf("%.1f", a.during),
		AvgReduction:     fmt.Sprintf("%.1f", a.reduction),
		EntriesCount:     len(entries),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent progress for %s over %d tasks:\n", displayName(name), len(entries))
	fmt.Fprintf(&b, "Average anxiety before %s, during %s, average reduction %s.\n", stats.AvgAnxietyBefore, stats.AvgAnxietyDuring, stats.AvgReduction)
	fmt.Fprintf(&b, "Medication-free tasks: %d of %d. Morning tasks: %d.\n", a.medicationFree, len(entries), a.morning)
	b.WriteString("Write a 2-3 sentence insight about a pattern you notice and one gentle suggestion.")

	insight := c.ask(ctx, "weekly_insight", ChatRequest{Messages: prompt(systemCoach, b.String())})
	if insight == "" {
		insight = weeklyFallback(a, len(entries))
	}
	return WeeklyInsight{Insight: insight, HasEnoughData: true, Stats: stats}
}

func weeklyFallback(a aggregate, n int) string {
	if a.reduction > 0 {
		return fmt.Sprintf("Across your last %d tasks your anxiety dropped by %.1f points on average. Your practice is paying off.", n, a.reduction)
	}
	return fmt.Sprintf("You've completed %d tasks recently. Showing up consistently is how exposure work builds confidence.", n)
}

// GreetingInput is the dashboard state a greeting is written for.
type GreetingInput struct {
	Name           string
	Hour           int
	CurrentStreak  int
	LongestStreak  int
	Level          int
	TotalXP        int
	CurrentWeek    int
	CompletedToday bool
}

type Greeting struct {
	Greeting       string `json:"greeting"`
	StreakAtRisk   bool   `json:"streakAtRisk"`
	CompletedToday bool   `json:"completedToday"`
}

func timeOfDay(hour int) string {
	switch {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

// Greeting welcomes the user back; a streak with no entry today is at risk.
func (c *Coach) Greeting(ctx context.Context, in GreetingInput) Greeting {
	atRisk := in.CurrentStreak > 0 && !in.CompletedToday
	tod := timeOfDay(in.Hour)

	var b strings.Builder
	fmt.Fprintf(&b, "It is %s. Greet %s.\n", tod, displayName(in.Name))
	fmt.Fprintf(&b, "Level %d, %d XP, protocol week %d. Current streak %d days, longest %d.\n", in.Level, in.TotalXP, in.CurrentWeek, in.CurrentStreak, in.LongestStreak)
	if in.CompletedToday {
		b.WriteString("They already completed today's task.\n")
	} else if atRisk {
		b.WriteString("They have not completed a task today and their streak is at risk.\n")
	}
	b.WriteString("Write a one sentence personal greeting.")

	g := c.ask(ctx, "greeting", ChatRequest{Messages: prompt(systemCoach, b.String())})
	if g == "" {
		g = fmt.Sprintf("Good %s, %s.", tod, displayName(in.Name))
		if atRisk {
			g += " You're on a streak, one small task today keeps it going."
		}
	}
	return Greeting{Greeting: g, StreakAtRisk: atRisk, CompletedToday: in.CompletedToday}
}

// Tip categories.
const (
	TipAnxietyManagement = "anxiety-management"
	TipMotivation        = "motivation"
	TipProgress          = "progress"
	TipTechnique         = "technique"
	TipCelebration       = "celebration"
	TipGettingStarted    = "getting-started"
)

type Tip struct {
	Tip      string `json:"tip"`
	Category string `json:"category"`
}

var tipSchema = &JSONSchema{
	Name:   "tip_of_day",
	Strict: true,
	Schema: json.RawMessage(`{"type":"object","properties":{"tip":{"type":"string"},"category":{"type":"string","enum":["anxiety-management","motivation","progress","technique","celebration"]}},"required":["tip","category"],"additionalProperties":false}`),
}

func validTipCategory(c string) bool {
	switch c {
	case TipAnxietyManagement, TipMotivation, TipProgress, TipTechnique, TipCelebration:
		return true
	}
	return false
}

// TipOfDay returns a tip for userID on day (2006-01-02). Tips are cached per user per day.
func (c *Coach) TipOfDay(ctx context.Context, userID uint, day string, entries []models.Entry) Tip {
	entries = head(entries, TipWindow)
	if len(entries) < minTipEntries {
		return Tip{Tip: "Start with small steps. Even a brief moment outside counts as progress.", Category: TipGettingStarted}
	}
	key := fmt.Sprintf("%s%d:%s", tipCachePrefix, userID, day)
	var cached Tip
	if c.cache != nil && c.cache.GetJSON(ctx, key, &cached) {
		return cached
	}

	a := averages(entries)
	user := fmt.Sprintf("Recent %d tasks: average anxiety before %.1f, during %.1f, medication-free %d, morning %d.\nGive one practical tip for today and a category.",
		len(entries), a.before, a.during, a.medicationFree, a.morning)

	var tip Tip
	if !c.askJSON(ctx, "tip_of_day", ChatRequest{Messages: prompt(systemCoach, user), Schema: tipSchema}, &tip) ||
		tip.Tip == "" || !validTipCategory(tip.Category) {
		tip = Tip{
			Tip:      fmt.Sprintf("Your anxiety has been dropping about %.1f points during tasks. Notice that drop today and let it carry you a little further.", a.reduction),
			Category: TipMotivation,
		}
	}
	if c.cache != nil {
		c.cache.SetJSON(ctx, key, tip, tipCacheTTL)
	}
	return tip
}

type ClientSummary struct {
	Summary   string   `json:"summary"`
	Concerns  []string `json:"concerns"`
	Positives []string `json:"positives"`
}

var summarySchema = &JSONSchema{
	Name:   "client_summary",
	Strict: true,
	Schema: json.RawMessage(`{"type":"object","properties":{"summary":{"type":"string"},"concerns":{"type":"array","items":{"type":"string"}},"positives":{"type":"array","items":{"type":"string"}}},"required":["summary","concerns","positives"],"additionalProperties":false}`),
}

// ClientSummary is the therapist-facing review of recent entries, newest first.
func (c *Coach) ClientSummary(ctx context.Context, u models.User, entries []models.Entry) ClientSummary {
	entries = head(entries, InsightWindow)
	name := displayName(u.Name)
	if len(entries) < minSummaryEntries {
		return ClientSummary{
			Summary:   fmt.Sprintf("Not enough data yet for AI analysis. %s needs to complete more tasks.", name),
			Concerns:  []string{},
			Positives: []string{},
		}
	}
	a := averages(entries)
	var b strings.Builder
	fmt.Fprintf(&b, "Client %s, protocol week %d, level %d, streak %d (longest %d).\n", name, u.CurrentWeek, u.CurrentLevel, u.CurrentStreak, u.LongestStreak)
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: before %d, during %d, medication %t", e.CompletionDay, e.AnxietyBefore, e.AnxietyDuring, e.UsedMedication)
		if e.WinNote != nil && *e.WinNote != "" {
			fmt.Fprintf(&b, ", note %q", *e.WinNote)
		}
		b.WriteString("\n")
	}
	b.WriteString("Summarize progress in 2-3 sentences and list concerns and positives.")

	var s ClientSummary
	if c.askJSON(ctx, "client_summary", ChatRequest{Messages: prompt(systemTherapistAid, b.String()), Schema: summarySchema}, &s) && s.Summary != "" {
		if s.Concerns == nil {
			s.Concerns = []string{}
		}
		if s.Positives == nil {
			s.Positives = []string{}
		}
		return s
	}
	return summaryFallback(name, entries, a)
}

func summaryFallback(name string, entries []models.Entry, a aggregate) ClientSummary {
	s := ClientSummary{
		Summary:   fmt.Sprintf("%s completed %d recent tasks with an average anxiety reduction of %.1f points.", name, len(entries), a.reduction),
		Concerns:  []string{},
		Positives: []string{},
	}
	medicated := len(entries) - a.medicationFree
	if medicated*2 > len(entries) {
		s.Concerns = append(s.Concerns, fmt.Sprintf("Rescue medication used in %d of %d tasks.", medicated, len(entries)))
	}
	for _, e := range entries {
		if len(s.Positives) == 3 {
			break
		}
		if e.WinNote != nil && strings.TrimSpace(*e.WinNote) != "" {
			s.Positives = append(s.Positives, strings.TrimSpace(*e.WinNote))
		}
	}
	return s
}

type aggregate struct {
	before, during, reduction float64
	medicationFree, morning   int
}

func averages(entries []models.Entry) aggregate {
	var s aggregate
	if len(entries) == 0 {
		return s
	}
	var before, during int
	for _, e := range entries {
		before += e.AnxietyBefore
		during += e.AnxietyDuring
		if !e.UsedMedication {
			s.medicationFree++
		}
		if e.LocalHour < 12 {
			s.morning++
		}
	}
	n := float64(len(entries))
	s.before = float64(before) / n
	s.during = float64(during) / n
	s.reduction = s.before - s.during
	return s
}

func head(entries []models.Entry, n int) []models.Entry {
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
