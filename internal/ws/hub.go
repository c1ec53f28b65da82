package ws

import (
	"context"
	"sync"

	"calma/backend/ai"
	"calma/backend/internal/catalog"
	"calma/backend/internal/progress"
	"calma/backend/pkg/logger"
	"calma/backend/shared/observability"
)

// Profiles loads and extends the persisted conversation of a profile.
type Profiles interface {
	Progress(ctx context.Context, profileID string) (progress.Progress, error)
	AppendTranscript(ctx context.Context, profileID string, entries ...progress.TranscriptEntry) error
}

// VoiceSettings tunes the audio pipeline of each socket.
type VoiceSettings struct {
	InputSampleRate  int
	OutputSampleRate int
	FrameSize        int
	TranscriptWindow int
	Voice            string
}

// Deps wires the hub.
type Deps struct {
	Live      ai.Live
	Companion *ai.Companion
	Profiles  Profiles
	Catalog   *catalog.Catalog
	Voice     VoiceSettings
	Metrics   *observability.Instruments
	Logger    *logger.Logger
}

// Hub tracks the open voice sockets.
type Hub struct {
	deps       Deps
	log        *logger.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(deps Deps) *Hub {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	return &Hub{
		deps:       deps,
		log:        deps.Logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("Client registered", "client_id", client.ID, "profile_id", client.ProfileID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.log.Info("Client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.closeSend()
	}
}
