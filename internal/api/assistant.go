package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"calma/backend/ai"
	"calma/backend/internal/profile"
	"calma/backend/internal/progress"
	"calma/backend/pkg/errors"
	"calma/backend/pkg/logger"
)

// AssistantHandler serves explanations, speech and text chat.
type AssistantHandler struct {
	profiles  *profile.Service
	companion Companion
}

// NewAssistantHandler creates the handler.
func NewAssistantHandler(profiles *profile.Service, companion Companion) *AssistantHandler {
	return &AssistantHandler{profiles: profiles, companion: companion}
}

// RegisterRoutes mounts the handler on rg.
func (h *AssistantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/explain", h.Explain)
	rg.POST("/speech", h.Speech)
	rg.POST("/chat", h.Chat)
}

type explainRequest struct {
	Topic string `json:"topic"`
}

// Explain returns the four part explanation of a topic.
func (h *AssistantHandler) Explain(c *gin.Context) {
	var req explainRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		fail(c, errors.NewBadRequestError(errors.CodeBadRequest, "topic must not be empty"))
		return
	}
	exp, err := h.companion.SimplifiedExplanation(c.Request.Context(), req.Topic)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, exp)
}

type speechRequest struct {
	Text string `json:"text"`
}

// Speech synthesizes text, with section markers removed. It answers 204
// when no audio could be produced.
func (h *AssistantHandler) Speech(c *gin.Context) {
	var req speechRequest
	if !bind(c, &req) {
		return
	}
	text := strings.TrimSpace(ai.StripSectionMarkers(req.Text))
	if text == "" {
		fail(c, errors.NewBadRequestError(errors.CodeBadRequest, "text must not be empty"))
		return
	}
	audio, found := h.companion.Speech(c.Request.Context(), text)
	if !found {
		c.Status(http.StatusNoContent)
		return
	}
	ok(c, audio)
}

type chatRequest struct {
	Text string `json:"text"`
}

// Chat answers a text turn. The profile's saved conversation is the history
// and both turns are appended to it.
func (h *AssistantHandler) Chat(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req chatRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		fail(c, errors.NewBadRequestError(errors.CodeBadRequest, "text must not be empty"))
		return
	}
	ctx := c.Request.Context()

	p, err := h.profiles.Progress(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	history := make([]ai.Message, 0, len(p.Transcript))
	for _, e := range p.Transcript {
		history = append(history, ai.Message{Role: e.Role, Text: e.Text})
	}

	reply := h.companion.Reply(ctx, history, req.Text)
	now := time.Now()
	err = h.profiles.AppendTranscript(ctx, id,
		progress.TranscriptEntry{Role: ai.RoleUser, Text: req.Text, At: now},
		progress.TranscriptEntry{Role: ai.RoleAssistant, Text: reply, At: now},
	)
	if err != nil {
		logger.FromContext(c).LogError(err, "failed to persist chat turn")
	}
	ok(c, ai.Message{Role: ai.RoleAssistant, Text: reply})
}
