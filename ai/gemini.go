package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig selects the models used for each call kind.
type GeminiConfig struct {
	APIKey      string
	TextModel   string
	SpeechModel string
	ImageModel  string
	LiveModel   string
	Voice       string
}

// Gemini implements Generator and Live on the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// GenerateText runs a single generation. History turns are sent before the
// prompt.
func (g *Gemini) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	contents := geminiContents(req)

	config := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TextModel, contents, config)
	if err != nil {
		return "", classifyGemini("generate_text", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// geminiContents maps history turns to Gemini roles and appends the prompt
// as the final user turn.
func geminiContents(req TextRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

// GenerateSpeech synthesizes text with the configured prebuilt voice. The
// service answers with 24 kHz mono PCM16.
func (g *Gemini) GenerateSpeech(ctx context.Context, text string) (Audio, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig:       speechConfig(g.cfg.Voice),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.SpeechModel, genai.Text(text), config)
	if err != nil {
		return Audio{}, classifyGemini("generate_speech", err)
	}
	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return Audio{}, &RemoteError{Op: "generate_speech", Err: ErrEmptyResponse}
	}
	return Audio{Data: blob.Data, MIMEType: blob.MIMEType, SampleRate: 24000}, nil
}

// EditImage sends an image with an instruction and returns the first image
// part of the answer.
func (g *Gemini) EditImage(ctx context.Context, img Image, prompt string) (Image, error) {
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(img.Data, img.MIMEType),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.ImageModel, []*genai.Content{content}, nil)
	if err != nil {
		return Image{}, classifyGemini("edit_image", err)
	}
	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return Image{}, &RemoteError{Op: "edit_image", Err: ErrEmptyResponse}
	}
	return Image{Data: blob.Data, MIMEType: blob.MIMEType}, nil
}

// Connect opens a Live API session answering with audio and transcribing
// the user's speech.
func (g *Gemini) Connect(ctx context.Context, cfg LiveConfig) (LiveChannel, error) {
	voice := cfg.Voice
	if voice == "" {
		voice = g.cfg.Voice
	}
	config := &genai.LiveConnectConfig{
		ResponseModalities:      []genai.Modality{genai.ModalityAudio},
		SpeechConfig:            speechConfig(voice),
		InputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}

	session, err := g.client.Live.Connect(ctx, g.cfg.LiveModel, config)
	if err != nil {
		return nil, classifyGemini("live_connect", err)
	}
	return &geminiChannel{session: session}, nil
}

type geminiChannel struct {
	session *genai.Session
}

func (c *geminiChannel) SendAudio(data []byte, mimeType string) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (c *geminiChannel) Receive(ctx context.Context) (LiveEvent, error) {
	if err := ctx.Err(); err != nil {
		return LiveEvent{}, err
	}
	msg, err := c.session.Receive()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return LiveEvent{}, io.EOF
		}
		return LiveEvent{}, classifyGemini("live_receive", err)
	}

	var ev LiveEvent
	sc := msg.ServerContent
	if sc == nil {
		return ev, nil
	}
	ev.TurnComplete = sc.TurnComplete
	ev.Interrupted = sc.Interrupted
	if sc.InputTranscription != nil {
		ev.InputTranscript = sc.InputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ev.Audio = append(ev.Audio, part.InlineData.Data)
			}
			if part.Text != "" {
				ev.Text += part.Text
			}
		}
	}
	return ev, nil
}

func (c *geminiChannel) Close() error {
	return c.session.Close()
}

func speechConfig(voice string) *genai.SpeechConfig {
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
		},
	}
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

func classifyGemini(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{Op: op, Err: err, RateLimited: apiErr.Code == http.StatusTooManyRequests}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &RemoteError{Op: op, Err: err, RateLimited: apiErrPtr.Code == http.StatusTooManyRequests}
	}
	return &RemoteError{Op: op, Err: err}
}
