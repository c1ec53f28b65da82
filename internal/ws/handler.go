// Package ws serves the realtime voice socket.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"calma/backend/ai"
	"calma/backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS middleware
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
}

// ServeWs upgrades /ws/voice?profileId= and starts the client pumps. The
// profile's saved conversation seeds the transcript.
func ServeWs(hub *Hub, c *gin.Context) {
	profileID := c.Query("profileId")
	if profileID == "" {
		profileID = c.GetHeader(logger.ProfileHeader)
	}
	if profileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "BAD_REQUEST",
			"message": "profileId is required",
		}})
		return
	}

	history := loadHistory(c.Request.Context(), hub, profileID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromContext(c).LogError(err, "websocket upgrade failed")
		return
	}
	conn.EnableWriteCompression(true)

	client := newClient(hub, conn, profileID, history)
	if !hub.add(client) {
		client.cancel()
		conn.Close()
		return
	}
	client.log.Info("Voice socket opened", "history", len(history))

	go client.WritePump()
	go client.ReadPump()
}

func loadHistory(ctx context.Context, hub *Hub, profileID string) []ai.Message {
	if hub.deps.Profiles == nil {
		return nil
	}
	p, err := hub.deps.Profiles.Progress(ctx, profileID)
	if err != nil {
		hub.log.LogError(err, "failed to load transcript", "profile_id", profileID)
		return nil
	}
	out := make([]ai.Message, 0, len(p.Transcript))
	for _, e := range p.Transcript {
		out = append(out, ai.Message{Role: e.Role, Text: e.Text})
	}
	return out
}
