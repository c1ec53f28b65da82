package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calma/backend/internal/games"
)

// GamesHandler serves the math, scramble and reframe games.
type GamesHandler struct {
	games *games.Service
}

// NewGamesHandler creates the handler.
func NewGamesHandler(svc *games.Service) *GamesHandler {
	return &GamesHandler{games: svc}
}

// RegisterRoutes mounts the handler on rg.
func (h *GamesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/games")
	{
		g.POST("/math/rounds", h.StartMath)
		g.POST("/math/rounds/:id/answers", h.AnswerMath)

		g.POST("/scramble", h.StartScramble)
		g.GET("/scramble/:id", h.GetScramble)
		g.POST("/scramble/:id/picks", h.PickWord)
		g.POST("/scramble/:id/reset", h.ResetScramble)
		g.POST("/scramble/:id/hint", h.RevealHint)

		g.GET("/reframe/scenario", h.ReframeScenario)
		g.POST("/reframe/evaluations", h.EvaluateReframe)
	}
}

type startMathRequest struct {
	Difficulty string `json:"difficulty"`
	Operation  string `json:"operation"`
}

func (h *GamesHandler) StartMath(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req startMathRequest
	if !bind(c, &req) {
		return
	}
	d, err := games.ParseDifficulty(req.Difficulty)
	if err != nil {
		fail(c, err)
		return
	}
	op, err := games.ParseOperation(req.Operation)
	if err != nil {
		fail(c, err)
		return
	}
	round, err := h.games.StartMath(c.Request.Context(), id, d, op)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, round)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *GamesHandler) AnswerMath(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req answerRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.games.AnswerMath(c.Request.Context(), id, c.Param("id"), req.Answer)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

func (h *GamesHandler) StartScramble(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	game, err := h.games.StartScramble(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (h *GamesHandler) GetScramble(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	game, err := h.games.Scramble(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, game)
}

type pickRequest struct {
	WordID *int `json:"wordId"`
}

func (h *GamesHandler) PickWord(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req pickRequest
	if !bind(c, &req) {
		return
	}
	if req.WordID == nil {
		fail(c, games.ErrUnknownWord)
		return
	}
	game, err := h.games.PickWord(c.Request.Context(), id, c.Param("id"), *req.WordID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, game)
}

func (h *GamesHandler) ResetScramble(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	game, err := h.games.ResetScramble(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, game)
}

func (h *GamesHandler) RevealHint(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	game, err := h.games.RevealHint(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, game)
}

func (h *GamesHandler) ReframeScenario(c *gin.Context) {
	ok(c, gin.H{"scenario": h.games.ReframeScenario(c.Request.Context())})
}

type reframeRequest struct {
	Negative string `json:"negative"`
	Positive string `json:"positive"`
}

func (h *GamesHandler) EvaluateReframe(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req reframeRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.games.EvaluateReframe(c.Request.Context(), id, req.Negative, req.Positive)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}
