package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"calma/backend/ai"
	"calma/backend/internal/catalog"
	"calma/backend/internal/profile"
	"calma/backend/internal/progress"
	"calma/backend/pkg/cache"
)

// Companion is the AI surface used by the HTTP handlers.
type Companion interface {
	QuickAffirmation(ctx context.Context, mood string) string
	MoodSupport(ctx context.Context, mood, name string) string
	SimplifiedExplanation(ctx context.Context, topic string) (ai.Explanation, error)
	Speech(ctx context.Context, text string) (ai.Audio, bool)
	Reply(ctx context.Context, history []ai.Message, text string) string
}

// ProfileHandler serves the profile, progress and mood journal routes.
type ProfileHandler struct {
	profiles  *profile.Service
	companion Companion
	cat       *catalog.Catalog
	daily     *cache.Cache
	now       func() time.Time
}

// NewProfileHandler creates the handler. daily caches the affirmation of
// the day per profile.
func NewProfileHandler(profiles *profile.Service, companion Companion, cat *catalog.Catalog, daily *cache.Cache) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, companion: companion, cat: cat, daily: daily, now: time.Now}
}

// RegisterRoutes mounts the handler on rg.
func (h *ProfileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/catalog", h.Catalog)
	rg.GET("/profile", h.GetProfile)
	rg.PUT("/profile", h.UpdateProfile)
	rg.DELETE("/profile", h.DeleteProfile)
	rg.GET("/progress", h.GetProgress)
	rg.POST("/progress/login", h.RecordLogin)
	rg.GET("/moods", h.ListMoods)
	rg.POST("/moods", h.SaveMood)
	rg.GET("/moods/stats", h.MoodStats)
	rg.GET("/affirmation", h.Affirmation)
}

// ProfileResponse is the full profile view.
type ProfileResponse struct {
	Name     string               `json:"name"`
	Progress progress.Progress    `json:"progress"`
	Badges   []progress.BadgeView `json:"badges"`
}

// Catalog lists moods, badges and breathing options.
func (h *ProfileHandler) Catalog(c *gin.Context) {
	ok(c, gin.H{
		"moods":          h.cat.Moods,
		"badges":         h.cat.Badges,
		"allowedBreaths": h.cat.Breathing.AllowedBreaths,
	})
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	ctx := c.Request.Context()

	name, err := h.profiles.Name(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	p, err := h.profiles.Progress(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, ProfileResponse{Name: name, Progress: p, Badges: progress.Badges(h.cat, p)})
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

// UpdateProfile stores the onboarding name.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req updateProfileRequest
	if !bind(c, &req) {
		return
	}
	if err := h.profiles.SetName(c.Request.Context(), id, req.Name); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"name": req.Name})
}

// DeleteProfile wipes everything stored for the profile.
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	if err := h.profiles.Reset(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProfileHandler) GetProgress(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	p, err := h.profiles.Progress(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// RecordLogin updates the visit streak.
func (h *ProfileHandler) RecordLogin(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	award, err := h.profiles.RecordLogin(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, award)
}

func (h *ProfileHandler) ListMoods(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	history, err := h.profiles.History(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"moods": history})
}

type saveMoodRequest struct {
	Mood    string `json:"mood"`
	Thought string `json:"thought"`
}

// SaveMoodResponse is the saved entry, the award and the companion's answer.
type SaveMoodResponse struct {
	profile.MoodResult
	Support string `json:"support"`
}

// SaveMood journals a mood and asks the companion for a supportive line.
func (h *ProfileHandler) SaveMood(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req saveMoodRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	res, err := h.profiles.SaveMood(ctx, id, req.Mood, req.Thought)
	if err != nil {
		fail(c, err)
		return
	}
	name, err := h.profiles.Name(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, SaveMoodResponse{
		MoodResult: res,
		Support:    h.companion.MoodSupport(ctx, req.Mood, name),
	})
}

func (h *ProfileHandler) MoodStats(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	stats, err := h.profiles.MoodStats(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

// Affirmation returns the affirmation of the day. It is generated once per
// profile and calendar day.
func (h *ProfileHandler) Affirmation(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	mood := c.DefaultQuery("mood", "neutral")
	key := "affirmation:" + id + ":" + today(h.now()) + ":" + mood

	if v, hit := h.daily.Get(key); hit {
		ok(c, gin.H{"text": v, "cached": true})
		return
	}
	text := h.companion.QuickAffirmation(c.Request.Context(), mood)
	h.daily.SetWithExpiration(key, text, 24*time.Hour)
	ok(c, gin.H{"text": text, "cached": false})
}
