// Package voice mediates the single realtime voice session of a client:
// it owns the microphone, the remote channel and the playback pipeline for
// the lifetime of a session and releases all three on every exit path.
package voice

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"calma/backend/ai"
	"calma/backend/internal/audio"
	"calma/backend/pkg/logger"
	"calma/backend/shared/observability"
)

// State of the controller.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
)

// Greeting is recorded in the transcript when a session opens.
const Greeting = "[Modo Voz Activo] Te escucho, amigo."

// Callbacks observe the session. They run on session goroutines and must
// not call Connect or Disconnect.
type Callbacks struct {
	OnOpen       func()
	OnTranscript func(ai.Message)
	// OnClose receives the error that ended the session, nil for a user
	// disconnect or a clean remote close.
	OnClose func(err error)
}

// Config wires a controller.
type Config struct {
	Live       ai.Live
	Microphone Microphone
	// Sink plays inbound audio.
	Sink       audio.Sink
	Clock      audio.Clock
	LiveConfig ai.LiveConfig
	FrameSize  int
	InputRate  int
	OutputRate int
	Transcript *ai.Transcript
	Callbacks  Callbacks
	Metrics    *observability.Instruments
	Logger     *logger.Logger
}

// Controller runs at most one voice session at a time.
type Controller struct {
	cfg Config
	log *logger.Logger

	mu            sync.Mutex
	state         State
	session       *session
	cancelConnect context.CancelFunc
	// connectDone is closed once an in-flight Connect has settled.
	connectDone chan struct{}
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = audio.RealClock{}
	}
	if cfg.FrameSize < 1 {
		cfg.FrameSize = audio.DefaultFrameSize
	}
	if cfg.InputRate < 1 {
		cfg.InputRate = audio.InputSampleRate
	}
	if cfg.OutputRate < 1 {
		cfg.OutputRate = audio.OutputSampleRate
	}
	if cfg.Transcript == nil {
		cfg.Transcript = ai.NewTranscript(40)
	}
	if cfg.LiveConfig.SystemInstruction == "" {
		cfg.LiveConfig.SystemInstruction = ai.LiveSystemInstruction
	}
	if cfg.LiveConfig.InputSampleRate == 0 {
		cfg.LiveConfig.InputSampleRate = cfg.InputRate
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{cfg: cfg, log: log, state: StateIdle}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the conversation transcript.
func (c *Controller) Transcript() *ai.Transcript { return c.cfg.Transcript }

// Connect acquires the microphone, opens the remote channel and starts
// streaming. On any failure everything acquired so far is released and the
// controller returns to idle.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(ctx)
	c.cancelConnect = cancel
	done := make(chan struct{})
	c.connectDone = done
	c.mu.Unlock()
	defer close(done)

	sess, err := c.open(ctx)

	c.mu.Lock()
	c.cancelConnect = nil
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil {
		c.state = StateConnected
		c.session = sess
		c.connectDone = nil
	}
	c.mu.Unlock()
	cancel()

	if err != nil {
		if sess != nil {
			sess.release()
		}
		c.mu.Lock()
		c.state = StateIdle
		c.connectDone = nil
		c.mu.Unlock()
		return err
	}

	c.cfg.Metrics.SessionOpened(context.Background())
	c.log.Info("voice session connected")
	c.record(ai.Message{Role: ai.RoleAssistant, Text: Greeting})
	if c.cfg.Callbacks.OnOpen != nil {
		c.cfg.Callbacks.OnOpen()
	}
	sess.start(c)
	return nil
}

func (c *Controller) open(ctx context.Context) (*session, error) {
	stream, err := c.cfg.Microphone.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			c.log.Info("microphone permission denied")
		}
		return nil, err
	}

	ch, err := c.cfg.Live.Connect(ctx, c.cfg.LiveConfig)
	if err != nil {
		stream.Close()
		c.log.LogError(err, "failed to open live channel")
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &session{
		stream: stream,
		ch:     ch,
		player: audio.NewPlayer(c.cfg.Clock, c.cfg.Sink, c.cfg.OutputRate),
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

// Disconnect ends the session, if any, and waits for its goroutines. A
// connect in flight is cancelled and awaited. The controller is idle when it
// returns.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	sess := c.session
	pending := c.connectDone
	if c.cancelConnect != nil {
		c.cancelConnect()
	}
	c.mu.Unlock()

	if pending != nil {
		<-pending
	}
	if sess == nil {
		return
	}
	c.end(sess, nil)
	<-sess.done
}

// end releases sess and returns the controller to idle. Only the first
// call per session has an effect.
func (c *Controller) end(sess *session, cause error) {
	if !sess.releaseOnce() {
		return
	}

	c.mu.Lock()
	if c.session == sess {
		c.session = nil
		c.state = StateIdle
	}
	c.mu.Unlock()

	sess.flush(c)
	c.cfg.Metrics.SessionClosed(context.Background())
	if cause != nil {
		c.log.LogError(cause, "voice session closed by error")
	} else {
		c.log.Info("voice session closed")
	}
	if c.cfg.Callbacks.OnClose != nil {
		c.cfg.Callbacks.OnClose(cause)
	}
}

func (c *Controller) record(m ai.Message) {
	if strings.TrimSpace(m.Text) == "" {
		return
	}
	c.cfg.Transcript.Append(m)
	if c.cfg.Callbacks.OnTranscript != nil {
		c.cfg.Callbacks.OnTranscript(m)
	}
}

type session struct {
	stream InputStream
	ch     ai.LiveChannel
	player *audio.Player
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once

	mu        sync.Mutex
	userText  strings.Builder
	modelText strings.Builder
}

func (s *session) releaseOnce() bool {
	released := false
	s.once.Do(func() {
		s.release()
		released = true
	})
	return released
}

// release stops playback, frees the microphone and closes the channel.
func (s *session) release() {
	s.cancel()
	s.player.Stop()
	s.stream.Close()
	s.ch.Close()
}

func (s *session) start(c *Controller) {
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.sendLoop(ctx, c) })
	g.Go(func() error { return s.receiveLoop(ctx, c) })

	go func() {
		defer close(s.done)
		err := g.Wait()
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			err = nil
		}
		c.end(s, err)
	}()
}

// sendLoop frames captured audio and streams it in capture order. Send
// failures drop the frame.
func (s *session) sendLoop(ctx context.Context, c *Controller) error {
	framer := audio.NewFramer(c.cfg.FrameSize)
	frames := s.stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case samples, ok := <-frames:
			if !ok {
				// microphone released; the session continues receive-only
				return nil
			}
			for _, frame := range framer.Write(samples) {
				blob := audio.NewBlob(frame, c.cfg.InputRate)
				if err := s.ch.SendAudio(blob.Data, blob.MIMEType); err != nil {
					c.log.Debug("dropped outbound audio frame", "error", err.Error())
					continue
				}
				c.cfg.Metrics.Chunk(ctx, observability.DirectionOutbound)
			}
		}
	}
}

func (s *session) receiveLoop(ctx context.Context, c *Controller) error {
	for {
		ev, err := s.ch.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.handle(ctx, c, ev)
	}
}

func (s *session) handle(ctx context.Context, c *Controller, ev ai.LiveEvent) {
	if ev.Interrupted {
		s.player.Interrupt()
	}
	for _, pcm := range ev.Audio {
		if _, err := s.player.Enqueue(pcm); err != nil {
			c.log.Debug("dropped inbound audio chunk", "error", err.Error())
			continue
		}
		c.cfg.Metrics.Chunk(ctx, observability.DirectionInbound)
	}

	s.mu.Lock()
	s.userText.WriteString(ev.InputTranscript)
	s.modelText.WriteString(ev.Text)
	s.mu.Unlock()

	if ev.TurnComplete {
		s.flush(c)
	}
}

// flush records the buffered turn, user side first.
func (s *session) flush(c *Controller) {
	s.mu.Lock()
	user := s.userText.String()
	model := s.modelText.String()
	s.userText.Reset()
	s.modelText.Reset()
	s.mu.Unlock()

	c.record(ai.Message{Role: ai.RoleUser, Text: strings.TrimSpace(user)})
	c.record(ai.Message{Role: ai.RoleAssistant, Text: strings.TrimSpace(model)})
}
