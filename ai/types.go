// Package ai talks to the remote generative service. Providers implement
// Generator (request/response calls) and Live (the realtime voice channel);
// Companion wraps a Generator with the fallbacks the app relies on.
package ai

import "context"

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// TextRequest describes a text generation call.
type TextRequest struct {
	Prompt string
	// System is the system instruction, if any.
	System string
	// History holds earlier turns, oldest first.
	History []Message
	// JSON asks the model for an application/json body.
	JSON        bool
	Temperature *float32
}

// Audio is raw mono PCM16 little-endian audio.
type Audio struct {
	Data       []byte `json:"data"`
	MIMEType   string `json:"mimeType"`
	SampleRate int    `json:"sampleRate"`
}

// Image is an encoded image.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Generator is a request/response model provider.
type Generator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateSpeech(ctx context.Context, text string) (Audio, error)
	EditImage(ctx context.Context, img Image, prompt string) (Image, error)
}

// LiveConfig configures a realtime voice channel.
type LiveConfig struct {
	SystemInstruction string
	Voice             string
	InputSampleRate   int
}

// LiveEvent is one message received on a realtime channel. Any subset of
// the fields may be set.
type LiveEvent struct {
	// Audio holds PCM16 output audio chunks in arrival order.
	Audio           [][]byte
	Text            string
	InputTranscript string
	TurnComplete    bool
	Interrupted     bool
}

// LiveChannel is an open realtime voice channel.
type LiveChannel interface {
	// SendAudio streams one captured chunk.
	SendAudio(data []byte, mimeType string) error
	// Receive blocks for the next event. It returns io.EOF once the remote
	// side closed the channel.
	Receive(ctx context.Context) (LiveEvent, error)
	Close() error
}

// Live opens realtime voice channels.
type Live interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveChannel, error)
}
