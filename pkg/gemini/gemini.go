package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type requestBody struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []safetySetting   `json:"safetySettings,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type responseBody struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func defaultSafetySettings() []safetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}

	settings := make([]safetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, safetySetting{Category: category, Threshold: "BLOCK_MEDIUM_AND_ABOVE"})
	}

	return settings
}

// Client calls the Gemini generateContent REST API. One model serves text-only
// prompts and another serves prompts that carry an inline image.
type Client struct {
	apiKey      string
	model       string
	visionModel string
	baseURL     string
	httpClient  *http.Client
}

func NewClient(apiKey, model, visionModel string, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// NewClientFromEnv builds a client from GEMINI_* environment variables.
// GEMINI_API_KEY is mandatory.
func NewClientFromEnv() *Client {
	return NewClient(
		env.MustGetEnvString("GEMINI_API_KEY"),
		env.GetEnvStringOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		env.GetEnvStringOrDefault("GEMINI_VISION_MODEL", "gemini-1.5-flash"),
		env.GetEnvDurationOrDefault("GEMINI_REQUEST_TIMEOUT", 30*time.Second),
	)
}

// GenerateText sends a text-only prompt and returns the generated reply.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.model, []part{{Text: prompt}})
}

// GenerateFromImage sends a prompt together with an inline image. The MIME
// type is sniffed from the image bytes.
func (c *Client) GenerateFromImage(ctx context.Context, prompt string, image []byte) (string, error) {
	parts := []part{
		{Text: prompt},
		{InlineData: &inlineData{
			MimeType: http.DetectContentType(image),
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	}

	return c.generate(ctx, c.visionModel, parts)
}

// Ping issues a small text generation to verify the API key and model are
// usable. It is meant for startup self-tests.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GenerateText(ctx, "Hello, are you working?")
	return err
}

func (c *Client) generate(ctx context.Context, model string, parts []part) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	body := requestBody{
		Contents: []content{{Parts: parts}},
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
		SafetySettings: defaultSafetySettings(),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", newError(ErrInvalidRequest, 0, err.Error())
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, model, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", newError(ErrInvalidRequest, 0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", classifyStatusError(res.StatusCode, raw)
	}

	var parsed responseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", newError(ErrMalformedResponse, res.StatusCode, err.Error())
	}

	text := extractText(parsed)
	if text == "" {
		return "", newError(ErrMalformedResponse, res.StatusCode, "response contains no text candidate")
	}

	return text, nil
}

func extractText(parsed responseBody) string {
	if len(parsed.Candidates) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		builder.WriteString(p.Text)
	}

	return strings.TrimSpace(builder.String())
}

func classifyTransportError(err error) *GenerationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrTimeout, 0, err.Error())
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return newError(ErrTimeout, 0, err.Error())
	}

	return newError(ErrUnreachable, 0, err.Error())
}

func classifyStatusError(status int, raw []byte) *GenerationError {
	message := apiErrorMessage(raw)

	switch {
	case status == http.StatusTooManyRequests:
		return newError(ErrRateLimited, status, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(ErrUnauthorized, status, message)
	case status >= 500:
		return newError(ErrServerFault, status, message)
	default:
		return newError(ErrInvalidRequest, status, message)
	}
}

func apiErrorMessage(raw []byte) string {
	var parsed responseBody
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	return strings.TrimSpace(string(raw))
}
