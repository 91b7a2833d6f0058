package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/retry"
)

// recognitionPrompt asks the vision model for a strict JSON object so the
// response parser stays simple. The model is still free to wrap the object
// in a code fence; parseAttributes tolerates that.
const recognitionPrompt = `You are a product cataloguer for a wholesale market.
Look at the photo and return ONLY a JSON object with these string keys:
"name", "description", "material", "dimensions", "production_origin", "packaging".
Use short factual values; leave a key as an empty string when the photo does not show it.`

// OpenAIClient implements recognition and enhancement on the OpenAI API.
type OpenAIClient struct {
	client           *openai.Client
	recognitionModel string
	enhancementModel string
}

// NewOpenAIClient creates the OpenAI-backed client.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAIClient{
		client:           openai.NewClient(cfg.APIKey),
		recognitionModel: cfg.RecognitionModel,
		enhancementModel: cfg.EnhancementModel,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Recognize sends the image to the vision model and parses the structured
// attributes out of its reply.
func (c *OpenAIClient) Recognize(ctx context.Context, imageURL string) (Attributes, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.recognitionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: recognitionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens: 512,
	})
	if err != nil {
		return Attributes{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Attributes{}, errors.New("recognition returned no choices")
	}
	attrs, err := parseAttributes(resp.Choices[0].Message.Content)
	if err != nil {
		return Attributes{}, err
	}
	return attrs, nil
}

// Enhance produces an improved description and, best-effort, a generated
// promotional image for the product. The description is required; image
// generation failures only leave ImageURL empty since the enhancement
// fields are optional on the product record anyway.
func (c *OpenAIClient) Enhance(ctx context.Context, p domain.Product) (Enhancement, error) {
	prompt := fmt.Sprintf(
		"Write an appealing two-sentence wholesale listing description for this product. Name: %s. Current description: %s. Material: %s. Origin: %s. Reply with the description only.",
		p.Name, p.Description, p.Material, p.ProductionOrigin,
	)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.enhancementModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return Enhancement{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Enhancement{}, errors.New("enhancement returned no choices")
	}
	out := Enhancement{
		Description: strings.TrimSpace(resp.Choices[0].Message.Content),
	}

	img, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         fmt.Sprintf("Clean studio product photo of %s on a white background", p.Name),
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err == nil && len(img.Data) > 0 {
		out.ImageURL = img.Data[0].URL
	}
	return out, nil
}

// classify maps provider errors onto the retry taxonomy: rate limits and
// server-side failures are transient, everything else (auth, validation)
// fails immediately.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return retry.Transient(err)
		}
		return err
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500 {
			return retry.Transient(err)
		}
		return err
	}
	// No HTTP status at all: the request never completed (DNS, timeout,
	// connection reset). Worth retrying.
	return retry.Transient(err)
}
