package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// OpenAI implements Generator for text and speech. It cannot edit images.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClient(cfg.APIKey), model: model}, nil
}

func (o *OpenAI) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{Model: o.model, Messages: messages}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAI("generate_text", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateSpeech asks for raw PCM, which OpenAI renders as 24 kHz mono
// PCM16, the same format the Gemini voice produces.
func (o *OpenAI) GenerateSpeech(ctx context.Context, text string) (Audio, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.VoiceAlloy,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return Audio{}, classifyOpenAI("generate_speech", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Audio{}, &RemoteError{Op: "generate_speech", Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(data) == 0 {
		return Audio{}, &RemoteError{Op: "generate_speech", Err: ErrEmptyResponse}
	}
	return Audio{Data: data, MIMEType: "audio/pcm;rate=24000", SampleRate: 24000}, nil
}

func (o *OpenAI) EditImage(context.Context, Image, string) (Image, error) {
	return Image{}, &RemoteError{Op: "edit_image", Err: ErrUnsupported}
}

// Connect always fails: the provider has no realtime voice channel.
func (o *OpenAI) Connect(context.Context, LiveConfig) (LiveChannel, error) {
	return nil, &RemoteError{Op: "live", Err: ErrUnsupported}
}

func classifyOpenAI(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{Op: op, Err: err, RateLimited: apiErr.HTTPStatusCode == http.StatusTooManyRequests}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteError{Op: op, Err: err, RateLimited: reqErr.HTTPStatusCode == http.StatusTooManyRequests}
	}
	return &RemoteError{Op: op, Err: err}
}
