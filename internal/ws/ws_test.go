package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calma/backend/ai"
	"calma/backend/internal/audio"
	"calma/backend/internal/progress"
	wire "calma/backend/pkg/ws"
)

type stubGenerator struct{}

func (stubGenerator) GenerateText(context.Context, ai.TextRequest) (string, error) {
	return "Estoy aquí contigo.", nil
}

func (stubGenerator) GenerateSpeech(context.Context, string) (ai.Audio, error) {
	return ai.Audio{}, ai.ErrUnsupported
}

func (stubGenerator) EditImage(context.Context, ai.Image, string) (ai.Image, error) {
	return ai.Image{}, ai.ErrUnsupported
}

type fakeChannel struct {
	events chan ai.LiveEvent
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent int
}

func (f *fakeChannel) SendAudio([]byte, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return nil
}

func (f *fakeChannel) Sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func (f *fakeChannel) Receive(ctx context.Context) (ai.LiveEvent, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return ai.LiveEvent{}, io.EOF
	case <-ctx.Done():
		return ai.LiveEvent{}, ctx.Err()
	}
}

func (f *fakeChannel) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakeLive struct {
	ch *fakeChannel
}

func (l *fakeLive) Connect(context.Context, ai.LiveConfig) (ai.LiveChannel, error) {
	return l.ch, nil
}

type memoryProfiles struct {
	mu      sync.Mutex
	entries []progress.TranscriptEntry
}

func (m *memoryProfiles) Progress(context.Context, string) (progress.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := progress.Default(time.Now())
	p.Transcript = append(p.Transcript, m.entries...)
	return p, nil
}

func (m *memoryProfiles) AppendTranscript(_ context.Context, _ string, entries ...progress.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memoryProfiles) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Text)
	}
	return out
}

func setup(t *testing.T) (*websocket.Conn, *fakeChannel, *memoryProfiles, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ch := &fakeChannel{events: make(chan ai.LiveEvent, 4), closed: make(chan struct{})}
	profiles := &memoryProfiles{}
	hub := NewHub(Deps{
		Live:      &fakeLive{ch: ch},
		Companion: ai.NewCompanion(stubGenerator{}, ai.CompanionConfig{MaxAttempts: 1}, nil, nil),
		Profiles:  profiles,
		Voice:     VoiceSettings{FrameSize: 4, TranscriptWindow: 40},
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws/voice", func(c *gin.Context) { ServeWs(hub, c) })
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/voice?profileId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Close()
		cancel()
	})
	return conn, ch, profiles, hub
}

func send(t *testing.T, conn *websocket.Conn, msgType string, content any) {
	t.Helper()
	data, err := wire.Encode(msgType, content)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// readUntil skips messages until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wire.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg wire.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestPingPong(t *testing.T) {
	conn, _, _, hub := setup(t)
	send(t, conn, wire.TypePing, nil)
	readUntil(t, conn, wire.TypePong)
	assert.Equal(t, 1, hub.Count())
}

func TestUnknownTypeReportsError(t *testing.T) {
	conn, _, _, _ := setup(t)
	send(t, conn, "dance", nil)
	msg := readUntil(t, conn, wire.TypeError)

	var e wire.Error
	require.NoError(t, json.Unmarshal(msg.Content, &e))
	assert.Equal(t, "unknown_type", e.Code)
}

func TestChatRepliesAndPersists(t *testing.T) {
	conn, _, profiles, _ := setup(t)
	send(t, conn, wire.TypeChat, wire.ChatMessage{Text: "Hola"})

	msg := readUntil(t, conn, wire.TypeChat)
	var reply wire.ChatMessage
	require.NoError(t, json.Unmarshal(msg.Content, &reply))
	assert.Equal(t, ai.RoleAssistant, reply.Role)
	assert.Equal(t, "Estoy aquí contigo.", reply.Text)

	assert.Eventually(t, func() bool {
		return len(profiles.Texts()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Hola", "Estoy aquí contigo."}, profiles.Texts())
}

func TestVoiceSessionRoundTrip(t *testing.T) {
	conn, ch, profiles, _ := setup(t)

	send(t, conn, wire.TypeConnect, nil)
	for {
		msg := readUntil(t, conn, wire.TypeState)
		var s wire.State
		require.NoError(t, json.Unmarshal(msg.Content, &s))
		if s.State == "connected" {
			break
		}
	}

	samples := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	send(t, conn, wire.TypeAudio, wire.AudioIn{Data: audio.EncodeFloat32(samples), Format: wire.FormatFloat32})
	assert.Eventually(t, func() bool { return ch.Sent() == 2 }, 2*time.Second, 10*time.Millisecond)

	pcm := audio.EncodePCM16([]float32{0.5, -0.5})
	ch.events <- ai.LiveEvent{Audio: [][]byte{pcm}, Text: "Hola", TurnComplete: true}

	msg := readUntil(t, conn, wire.TypeAudio)
	var out wire.AudioOut
	require.NoError(t, json.Unmarshal(msg.Content, &out))
	assert.Equal(t, pcm, out.Data)
	assert.Equal(t, audio.OutputSampleRate, out.SampleRate)
	readUntil(t, conn, wire.TypeAudioEnd)

	send(t, conn, wire.TypeDisconnect, nil)
	for {
		msg := readUntil(t, conn, wire.TypeState)
		var s wire.State
		require.NoError(t, json.Unmarshal(msg.Content, &s))
		if s.State == "idle" {
			break
		}
	}
	assert.Contains(t, profiles.Texts(), "Hola")
}

func TestMicDeniedKeepsIdle(t *testing.T) {
	conn, _, _, _ := setup(t)
	send(t, conn, wire.TypeMicDenied, nil)
	send(t, conn, wire.TypeConnect, nil)

	msg := readUntil(t, conn, wire.TypeError)
	var e wire.Error
	require.NoError(t, json.Unmarshal(msg.Content, &e))
	assert.Equal(t, "mic_denied", e.Code)
}

func TestMissingProfileRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(Deps{})
	r := gin.New()
	r.GET("/ws/voice", func(c *gin.Context) { ServeWs(hub, c) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws/voice", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, 400, w.Code)
}
