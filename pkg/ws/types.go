// Package ws defines the JSON messages exchanged on the voice socket. Both
// the server and the voice client speak it.
package ws

import (
	"encoding/json"
	"time"
)

// Client to server message types.
const (
	TypeConnect        = "connect"
	TypeDisconnect     = "disconnect"
	TypeMicDenied      = "mic_denied"
	TypeMicGranted     = "mic_granted"
	TypeAudio          = "audio"
	TypeChat           = "chat"
	TypeBreathingStart = "breathing_start"
	TypeBreathingStop  = "breathing_stop"
	TypePing           = "ping"
)

// Server to client message types. TypeAudio and TypeChat are used in both
// directions.
const (
	TypeState      = "state"
	TypeAudioEnd   = "audio_end"
	TypeTranscript = "transcript"
	TypeBreathing  = "breathing"
	TypeError      = "error"
	TypePong       = "pong"
)

// Audio sample formats accepted from clients.
const (
	FormatFloat32 = "f32"
	FormatPCM16   = "pcm16"
)

// Message is the envelope of every frame.
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// AudioIn is a captured microphone buffer, base64 in Data.
type AudioIn struct {
	Data   []byte `json:"data"`
	Format string `json:"format,omitempty"`
}

// AudioOut is a scheduled playback chunk of PCM16 audio.
type AudioOut struct {
	Seq        uint64 `json:"seq"`
	Data       []byte `json:"data"`
	SampleRate int    `json:"sampleRate"`
	StartAt    int64  `json:"startAt"`
	DurationMs int64  `json:"durationMs"`
}

// AudioEnd reports that a chunk finished playing.
type AudioEnd struct {
	Seq uint64 `json:"seq"`
}

// State reports the voice session state.
type State struct {
	State string `json:"state"`
}

// ChatMessage is a text turn.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// BreathingStart starts an exercise.
type BreathingStart struct {
	Breaths int `json:"breaths"`
}

// Error is sent when a client request fails.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode builds an envelope around content.
func Encode(msgType string, content any) ([]byte, error) {
	msg := Message{Type: msgType}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, err
		}
		msg.Content = raw
	}
	return json.Marshal(msg)
}
