package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

// Options configures the client. An empty BaseURL uses the public Gemini API.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client drafts quizzes through the Gemini generateContent API.
type Client struct {
	models *genai.Models
	model  string
	config *genai.GenerateContentConfig
}

var _ app.DraftGenerator = (*Client)(nil)

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		models: sdk.Models,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.7),
			MaxOutputTokens:  2048,
			ResponseMIMEType: "application/json",
		},
	}, nil
}

// Generate asks the model for a quiz draft. Every failure is reported as
// domain.ErrGenerationFailed so callers can map it to one response.
func (c *Client) Generate(ctx context.Context, prompt domain.DraftPrompt) (domain.RawDraft, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(BuildPrompt(prompt)), c.config)
	if err != nil {
		return domain.RawDraft{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	text, err := candidateText(resp)
	if err != nil {
		return domain.RawDraft{}, err
	}

	var draft domain.RawDraft
	if err := json.Unmarshal([]byte(stripFences(text)), &draft); err != nil {
		return domain.RawDraft{}, fmt.Errorf("%w: generator returned content that is not valid JSON", domain.ErrGenerationFailed)
	}
	return draft, nil
}

func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: response did not include any candidates", domain.ErrGenerationFailed)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: response does not contain text content", domain.ErrGenerationFailed)
	}
	return text, nil
}

// stripFences removes a surrounding ``` or ```json markdown fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.Trim(text, "`")
	text = strings.TrimPrefix(text, "json")
	return strings.TrimSpace(text)
}
