package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"calma/backend/ai"
	"calma/backend/internal/audio"
	"calma/backend/internal/breathing"
	"calma/backend/internal/progress"
	"calma/backend/internal/voice"
	"calma/backend/pkg/logger"
	wire "calma/backend/pkg/ws"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	sendBuffer = 256
)

// Client is one voice socket. It owns a voice controller, a chat session
// and a breathing exercise that share one transcript.
type Client struct {
	ID        string
	ProfileID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub

	log        *logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	mic        *voice.PushMicrophone
	voice      *voice.Controller
	chat       *ai.ChatSession
	breathing  *breathing.Exercise
	transcript *ai.Transcript
	outRate    int

	wg     sync.WaitGroup
	sendMu sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, profileID string, history []ai.Message) *Client {
	d := hub.deps
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	c := &Client{
		ID:         id,
		ProfileID:  profileID,
		Conn:       conn,
		Send:       make(chan []byte, sendBuffer),
		Hub:        hub,
		log:        hub.log.WithProfileID(profileID).WithSessionID(id),
		ctx:        ctx,
		cancel:     cancel,
		mic:        voice.NewPushMicrophone(0),
		transcript: ai.NewTranscript(d.Voice.TranscriptWindow, history...),
		outRate:    d.Voice.OutputSampleRate,
	}
	if c.outRate <= 0 {
		c.outRate = audio.OutputSampleRate
	}

	c.voice = voice.NewController(voice.Config{
		Live:       d.Live,
		Microphone: c.mic,
		Sink:       playbackSink{c},
		LiveConfig: ai.LiveConfig{Voice: d.Voice.Voice},
		FrameSize:  d.Voice.FrameSize,
		InputRate:  d.Voice.InputSampleRate,
		OutputRate: c.outRate,
		Transcript: c.transcript,
		Metrics:    d.Metrics,
		Logger:     c.log,
		Callbacks: voice.Callbacks{
			OnOpen:       func() { c.sendState(voice.StateConnected) },
			OnTranscript: c.onTranscript,
			OnClose: func(err error) {
				if err != nil {
					c.sendError("voice_closed", "La conexión de voz se cerró.")
				}
				c.sendState(voice.StateIdle)
			},
		},
	})
	if d.Companion != nil {
		c.chat = ai.NewChatSession(d.Companion, c.transcript)
	}

	var speaker breathing.Speaker
	if d.Companion != nil {
		speaker = d.Companion
	}
	c.breathing = breathing.New(d.Catalog, nil, speaker, func(ev breathing.Event) {
		c.sendMessage(wire.TypeBreathing, ev)
	})
	return c
}

// playbackSink forwards scheduled playback to the browser.
type playbackSink struct{ c *Client }

func (s playbackSink) Start(ch audio.Chunk) {
	s.c.sendMessage(wire.TypeAudio, wire.AudioOut{
		Seq:        ch.Seq,
		Data:       ch.PCM,
		SampleRate: s.c.outRate,
		StartAt:    ch.StartAt.UnixMilli(),
		DurationMs: ch.Duration.Milliseconds(),
	})
}

func (s playbackSink) End(ch audio.Chunk) {
	s.c.sendMessage(wire.TypeAudioEnd, wire.AudioEnd{Seq: ch.Seq})
}

// ReadPump reads client messages until the socket fails, then tears the
// client down.
func (c *Client) ReadPump() {
	defer func() {
		c.shutdown()
		c.Hub.remove(c)
		c.Conn.Close()
		c.log.Debug("ReadPump ended")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.LogError(err, "websocket read failed")
			}
			return
		}

		var msg wire.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("bad_message", "Mensaje no válido.")
			continue
		}
		c.handleMessage(msg)
	}
}

// shutdown ends every activity of the client and waits for them.
func (c *Client) shutdown() {
	c.cancel()
	c.wg.Wait()
	c.breathing.Stop()
	c.voice.Disconnect()
	c.breathing.Wait()
}

// handleMessage runs quick messages inline so audio keeps capture order;
// blocking ones run in the background.
func (c *Client) handleMessage(msg wire.Message) {
	switch msg.Type {
	case wire.TypePing:
		c.sendMessage(wire.TypePong, nil)
	case wire.TypeAudio:
		c.handleAudio(msg.Content)
	case wire.TypeConnect:
		c.background(c.handleConnect)
	case wire.TypeDisconnect:
		c.background(func() { c.voice.Disconnect() })
	case wire.TypeMicDenied:
		c.mic.SetDenied(true)
	case wire.TypeMicGranted:
		c.mic.SetDenied(false)
	case wire.TypeChat:
		var in wire.ChatMessage
		if err := json.Unmarshal(msg.Content, &in); err != nil || strings.TrimSpace(in.Text) == "" {
			c.sendError("bad_message", "El mensaje está vacío.")
			return
		}
		c.background(func() { c.handleChat(in) })
	case wire.TypeBreathingStart:
		var in wire.BreathingStart
		if err := json.Unmarshal(msg.Content, &in); err != nil {
			c.sendError("bad_message", "Mensaje no válido.")
			return
		}
		if err := c.breathing.Start(c.ctx, in.Breaths); err != nil {
			c.sendError("breathing", err.Error())
		}
	case wire.TypeBreathingStop:
		c.breathing.Stop()
	default:
		c.log.Warn("Unknown message type", "type", msg.Type)
		c.sendError("unknown_type", "Tipo de mensaje desconocido.")
	}
}

func (c *Client) background(fn func()) {
	if c.ctx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Client) handleConnect() {
	c.sendState(voice.StateConnecting)
	err := c.voice.Connect(c.ctx)
	switch {
	case err == nil:
	case errors.Is(err, voice.ErrAlreadyActive):
		c.sendError("already_active", "La sesión de voz ya está activa.")
		return
	case errors.Is(err, voice.ErrPermissionDenied):
		c.sendError("mic_denied", "Necesito permiso para usar el micrófono.")
		c.sendState(voice.StateIdle)
	default:
		c.log.LogError(err, "voice connect failed")
		c.sendError("connect_failed", "No pude conectar con la voz. Intenta de nuevo.")
		c.sendState(voice.StateIdle)
	}
}

func (c *Client) handleAudio(raw json.RawMessage) {
	var in wire.AudioIn
	if err := json.Unmarshal(raw, &in); err != nil {
		c.sendError("bad_audio", "Audio no válido.")
		return
	}
	var (
		samples []float32
		err     error
	)
	if in.Format == wire.FormatPCM16 {
		samples, err = audio.DecodePCM16(in.Data)
	} else {
		samples, err = audio.DecodeFloat32(in.Data)
	}
	if err != nil {
		c.sendError("bad_audio", "Audio no válido.")
		return
	}
	if ok, err := c.mic.Push(samples); err != nil || !ok {
		c.log.Debug("dropped microphone buffer", "active", c.mic.Active())
	}
}

func (c *Client) handleChat(in wire.ChatMessage) {
	if c.chat == nil {
		c.sendError("chat_unavailable", "El chat no está disponible.")
		return
	}
	c.persist(ai.Message{Role: ai.RoleUser, Text: in.Text})
	reply := c.chat.Send(c.ctx, in.Text)
	c.persist(reply)
	c.sendMessage(wire.TypeChat, wire.ChatMessage{
		ID:        uuid.NewString(),
		Role:      reply.Role,
		Text:      reply.Text,
		Timestamp: time.Now(),
	})
}

func (c *Client) onTranscript(m ai.Message) {
	c.persist(m)
	c.sendMessage(wire.TypeTranscript, wire.ChatMessage{Role: m.Role, Text: m.Text, Timestamp: time.Now()})
}

// persist stores a conversation line in the profile ledger. It outlives
// the socket so the closing turn is kept.
func (c *Client) persist(m ai.Message) {
	profiles := c.Hub.deps.Profiles
	if profiles == nil || c.ProfileID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 5*time.Second)
	defer cancel()
	entry := progress.TranscriptEntry{Role: m.Role, Text: m.Text, At: time.Now()}
	if err := profiles.AppendTranscript(ctx, c.ProfileID, entry); err != nil {
		c.log.LogError(err, "failed to persist transcript")
	}
}

func (c *Client) sendState(s voice.State) {
	c.sendMessage(wire.TypeState, wire.State{State: string(s)})
}

func (c *Client) sendError(code, text string) {
	c.sendMessage(wire.TypeError, wire.Error{Code: code, Message: text})
}

// sendMessage queues a message. Messages for a closed or saturated client
// are dropped.
func (c *Client) sendMessage(msgType string, content any) {
	data, err := wire.Encode(msgType, content)
	if err != nil {
		c.log.LogError(err, "failed to encode message", "type", msgType)
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.log.Warn("Client send buffer full, dropping message", "type", msgType)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WritePump writes queued messages and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Send any queued messages separately instead of combining them
			n := len(c.Send)
			for i := 0; i < n; i++ {
				extra, ok := <-c.Send
				if !ok {
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, extra); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
