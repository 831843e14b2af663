package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/transcript"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// ImageOrderNote follows the images of a request so the model can refer to
// them by name.
const ImageOrderNote = "Context: The first image provided is 'Image A'. The second image provided (if any) is 'Image B'."

var ErrNoAPIKey = errors.New("gemini api key not configured")

// Request is a single-shot generation request.
type Request struct {
	Model       string
	System      string
	History     []string
	Images      []transcript.Attachment
	Prompt      string
	Temperature float64 // zero leaves the provider default
}

type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GoogleModel calls the Gemini API through langchaingo.
type GoogleModel struct {
	client *googleai.GoogleAI
}

func NewGoogleModel(ctx context.Context, cfg config.GeminiConfig) (*GoogleModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	opts := []googleai.Option{
		googleai.WithAPIKey(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}

	client, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GoogleModel{client: client}, nil
}

func (m *GoogleModel) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := m.client.GenerateContent(ctx, buildMessages(req), callOptions(req)...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

func buildMessages(req Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.History)+2)

	if req.System != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}

	for _, txt := range req.History {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(txt)},
		})
	}

	parts := make([]llms.ContentPart, 0, len(req.Images)+2)
	for _, img := range req.Images {
		parts = append(parts, llms.BinaryPart(img.MIMEType, img.Data))
	}
	if len(req.Images) > 0 {
		parts = append(parts, llms.TextPart(ImageOrderNote))
	}
	parts = append(parts, llms.TextPart(req.Prompt))

	return append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	})
}

func callOptions(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	return opts
}
