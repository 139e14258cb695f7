// Package llm wraps the Gemini backends behind narrow single-shot
// interfaces so services can take test doubles instead of a global client.
package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// TextGenerator produces one text completion for one prompt. No streaming,
// no retry at this layer.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces one image for one prompt, returning raw bytes and
// their content type.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

const textTemperature = 0.3

// Gemini implements TextGenerator and ImageGenerator on the Gemini API.
type Gemini struct {
	apiKey     string
	textModel  string
	imageModel string

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini creates a Gemini wrapper. The underlying client is created
// lazily on first use since construction requires a context.
func NewGemini(apiKey, textModel, imageModel string) *Gemini {
	return &Gemini{
		apiKey:     apiKey,
		textModel:  textModel,
		imageModel: imageModel,
	}
}

func (g *Gemini) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// GenerateText sends a single user prompt and returns the response text.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	temperature := float32(textTemperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	result, err := client.Models.GenerateContent(ctx, g.textModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("empty response from gemini")
	}
	return result.Text(), nil
}

// GenerateImage sends a single prompt to the image-capable model and returns
// the first inline image found in the response.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return nil, "", err
	}

	result, err := client.Models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), nil)
	if err != nil {
		return nil, "", fmt.Errorf("gemini generate image: %w", err)
	}
	if result == nil {
		return nil, "", fmt.Errorf("empty response from gemini")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			contentType := part.InlineData.MIMEType
			if contentType == "" {
				contentType = "image/png"
			}
			return part.InlineData.Data, contentType, nil
		}
	}

	return nil, "", fmt.Errorf("gemini response did not include image data")
}
