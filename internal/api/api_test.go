package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calma/backend/ai"
	"calma/backend/internal/art"
	"calma/backend/internal/catalog"
	"calma/backend/internal/games"
	"calma/backend/internal/profile"
	"calma/backend/internal/store"
	"calma/backend/pkg/cache"
	"calma/backend/pkg/errors"
	"calma/backend/pkg/health"
	"calma/backend/pkg/logger"
)

// mockAI stands in for the companion on every surface.
type mockAI struct {
	mock.Mock
}

func (m *mockAI) QuickAffirmation(ctx context.Context, mood string) string {
	return m.Called(ctx, mood).String(0)
}

func (m *mockAI) MoodSupport(ctx context.Context, mood, name string) string {
	return m.Called(ctx, mood, name).String(0)
}

func (m *mockAI) SimplifiedExplanation(ctx context.Context, topic string) (ai.Explanation, error) {
	args := m.Called(ctx, topic)
	return args.Get(0).(ai.Explanation), args.Error(1)
}

func (m *mockAI) Speech(ctx context.Context, text string) (ai.Audio, bool) {
	args := m.Called(ctx, text)
	return args.Get(0).(ai.Audio), args.Bool(1)
}

func (m *mockAI) Reply(ctx context.Context, history []ai.Message, text string) string {
	return m.Called(ctx, history, text).String(0)
}

func (m *mockAI) MotivationalQuote(ctx context.Context) ai.Quote {
	return m.Called(ctx).Get(0).(ai.Quote)
}

func (m *mockAI) ReframingScenario(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *mockAI) EvaluateReframing(ctx context.Context, negative, positive string) ai.Reframe {
	return m.Called(ctx, negative, positive).Get(0).(ai.Reframe)
}

func (m *mockAI) MathFeedback(ctx context.Context, correct, total int, difficulty string) string {
	return m.Called(ctx, correct, total, difficulty).String(0)
}

func (m *mockAI) EditArtImage(ctx context.Context, img ai.Image, prompt string) (ai.Image, bool) {
	args := m.Called(ctx, img, prompt)
	return args.Get(0).(ai.Image), args.Bool(1)
}

func newTestRouter(t *testing.T, m *mockAI) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.Default()
	repo := profile.NewRepository(store.NewMemory(), "profile", logger.Discard())
	profiles := profile.NewService(repo, cat, nil, logger.Discard(), profile.Options{})
	sessions := cache.New(cache.Options{})
	t.Cleanup(sessions.Close)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	v1 := r.Group("/api/v1")
	NewProfileHandler(profiles, m, cat, sessions).RegisterRoutes(v1)
	NewAssistantHandler(profiles, m).RegisterRoutes(v1)
	NewGamesHandler(games.NewService(m, profiles, cat, sessions, nil, games.Options{Seed: 1})).RegisterRoutes(v1)
	NewArtHandler(art.NewStudio(m, profiles, cat, nil)).RegisterRoutes(v1)
	NewHealthHandler(health.NewChecker(nil, time.Minute), func() int { return 2 }, "test").RegisterHealthRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(logger.ProfileHeader, "p1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestMissingProfileHeader(t *testing.T) {
	r := newTestRouter(t, new(mockAI))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeBadRequest, decode[errorBody](t, w).Error.Code)
}

func TestProfileNameRoundTrip(t *testing.T) {
	r := newTestRouter(t, new(mockAI))

	w := do(t, r, http.MethodPut, "/api/v1/profile", gin.H{"name": "Lu"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ProfileResponse](t, w)
	assert.Equal(t, "Lu", resp.Name)
	assert.Len(t, resp.Badges, len(catalog.Default().Badges))

	w = do(t, r, http.MethodPut, "/api/v1/profile", gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/profile", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSaveMoodAwardsPointsAndSupport(t *testing.T) {
	m := new(mockAI)
	m.On("MoodSupport", mock.Anything, "Calmado", "").Return("Qué bien, sigue así.")
	r := newTestRouter(t, m)

	w := do(t, r, http.MethodPost, "/api/v1/moods", gin.H{"mood": "Calmado"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[SaveMoodResponse](t, w)
	assert.Equal(t, "Qué bien, sigue así.", resp.Support)
	assert.Equal(t, 15, resp.Progress.Points)
	assert.Equal(t, "😌", resp.Entry.Emoji)
	assert.Contains(t, resp.Unlocked, "first_mood")

	w = do(t, r, http.MethodGet, "/api/v1/moods/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dominant":{"mood":"Calmado"`)

	w = do(t, r, http.MethodPost, "/api/v1/moods", gin.H{"mood": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertExpectations(t)
}

func TestAffirmationCachedPerDay(t *testing.T) {
	m := new(mockAI)
	m.On("QuickAffirmation", mock.Anything, "neutral").Return("Hoy brillas.").Once()
	r := newTestRouter(t, m)

	first := do(t, r, http.MethodGet, "/api/v1/affirmation", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"text":"Hoy brillas.","cached":false}`, first.Body.String())

	second := do(t, r, http.MethodGet, "/api/v1/affirmation", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"text":"Hoy brillas.","cached":true}`, second.Body.String())
	m.AssertExpectations(t)
}

func TestExplainRemoteFailure(t *testing.T) {
	m := new(mockAI)
	m.On("SimplifiedExplanation", mock.Anything, "fotosíntesis").
		Return(ai.Explanation{}, &ai.RemoteError{Op: "explain", Err: ai.ErrEmptyResponse})
	r := newTestRouter(t, m)

	w := do(t, r, http.MethodPost, "/api/v1/explain", gin.H{"topic": "fotosíntesis"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, ai.FallbackExplanationError, decode[errorBody](t, w).Error.Message)
}

func TestSpeechUnavailable(t *testing.T) {
	m := new(mockAI)
	m.On("Speech", mock.Anything, "Hola").Return(ai.Audio{}, false)
	r := newTestRouter(t, m)

	w := do(t, r, http.MethodPost, "/api/v1/speech", gin.H{"text": "SUMMARY: Hola"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestChatPersistsTranscript(t *testing.T) {
	m := new(mockAI)
	m.On("Reply", mock.Anything, []ai.Message{}, "hola").Return("¡Hola! ¿Cómo estás?").Once()
	m.On("Reply", mock.Anything, []ai.Message{
		{Role: ai.RoleUser, Text: "hola"},
		{Role: ai.RoleAssistant, Text: "¡Hola! ¿Cómo estás?"},
	}, "bien").Return("Me alegro.").Once()
	r := newTestRouter(t, m)

	w := do(t, r, http.MethodPost, "/api/v1/chat", gin.H{"text": "hola"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPost, "/api/v1/chat", gin.H{"text": "bien"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Me alegro.", decode[ai.Message](t, w).Text)
	m.AssertExpectations(t)
}

func TestScrambleOverHTTP(t *testing.T) {
	m := new(mockAI)
	m.On("MotivationalQuote", mock.Anything).Return(ai.Quote{Quote: "Cree en ti.", Hint: "Confianza"})
	r := newTestRouter(t, m)

	w := do(t, r, http.MethodPost, "/api/v1/games/scramble", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	game := decode[games.ScrambleView](t, w)
	require.Len(t, game.Bank, 3)

	var last games.ScrambleView
	for id := 0; id < 3; id++ {
		w = do(t, r, http.MethodPost, "/api/v1/games/scramble/"+game.ID+"/picks", gin.H{"wordId": id})
		require.Equal(t, http.StatusOK, w.Code)
		last = decode[games.ScrambleView](t, w)
	}
	assert.True(t, last.Won)
	assert.Equal(t, 30, last.Points)

	w = do(t, r, http.MethodPost, "/api/v1/games/scramble/"+game.ID+"/picks", gin.H{"wordId": 0})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/games/scramble/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMathRejectsUnknownDifficulty(t *testing.T) {
	r := newTestRouter(t, new(mockAI))
	w := do(t, r, http.MethodPost, "/api/v1/games/math/rounds", gin.H{"difficulty": "Experto", "operation": "+"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/games/math/rounds", gin.H{"difficulty": "Pro", "operation": "÷"})
	require.Equal(t, http.StatusCreated, w.Code)
	round := decode[games.Round](t, w)
	assert.Equal(t, games.Divide, round.Operation)
	assert.Equal(t, 1, round.Question)
}

func TestMirrorDefaultsToEightfold(t *testing.T) {
	r := newTestRouter(t, new(mockAI))
	w := do(t, r, http.MethodPost, "/api/v1/art/mirror", gin.H{
		"point":  gin.H{"x": 10, "y": 0},
		"center": gin.H{"x": 0, "y": 0},
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Points []art.Point `json:"points"`
	}](t, w)
	assert.Len(t, resp.Points, art.DefaultSymmetry)
}

func TestHealthReportsSockets(t *testing.T) {
	r := newTestRouter(t, new(mockAI))
	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, 2, resp.Sockets)
	assert.Equal(t, "test", resp.Version)
}
