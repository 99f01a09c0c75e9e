// Package aiclient talks to the chat-completion relay. Requests go through
// the edge relay rather than the vendor directly, so no vendor credential
// ever lives in this process. Responses are free-form model text that the
// parsers in this package coerce into structured results.
package aiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default request budgets, matching the relay's expectations.
const (
	defaultTimeout = 60 * time.Second
	defaultModel   = "doubao-seed-1-6-flash-250828"
)

// Config configures the relay client.
type Config struct {
	// RelayURL is the full URL of the relay's chat endpoint.
	RelayURL string
	// Model overrides the relay's default model when non-empty.
	Model string
	// Timeout bounds each request end to end.
	Timeout time.Duration
}

// Client sends feature requests through the relay. Construct with New.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// ─── Wire Types ─────────────────────────────────────────────────────────────

// Message is one entry in the chat transcript. Content is either a plain
// string or a []ContentPart for image-bearing messages.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is a single block of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// relayRequest is the envelope the relay expects: an action tag for its
// logs plus the vendor-shaped messages array.
type relayRequest struct {
	Action   string    `json:"action"`
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

// chatResponse is the vendor response passed through by the relay.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RelayError is a non-2xx answer from the relay. Retry reports whether the
// relay considers the failure transient.
type RelayError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details"`
	Retry   bool   `json:"retry"`
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay: %s (%s, status %d)", e.Message, e.Details, e.Status)
}

// ─── Feature Calls ──────────────────────────────────────────────────────────

// Analyze scores a single conversation screenshot.
func (c *Client) Analyze(ctx context.Context, image []byte) (*AnalysisResult, error) {
	content, err := c.chat(ctx, "analyze", []Message{imageMessage(analysisPrompt, image)})
	if err != nil {
		return nil, err
	}
	return parseAnalysis(content), nil
}

// AnalyzeMulti scores a set of screenshots as one conversation.
func (c *Client) AnalyzeMulti(ctx context.Context, images [][]byte) (*AnalysisResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("multi-image analysis: no images")
	}

	parts := make([]ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, imagePart(img))
	}
	parts = append(parts, ContentPart{Type: "text", Text: analysisPrompt})

	content, err := c.chat(ctx, "analyze_multi", []Message{{Role: "user", Content: parts}})
	if err != nil {
		return nil, err
	}
	return parseAnalysis(content), nil
}

// Replies suggests three tones of reply to the given incoming message.
func (c *Client) Replies(ctx context.Context, message string) (*ReplyOptions, error) {
	content, err := c.chat(ctx, "replies", []Message{{Role: "user", Content: replyPrompt(message)}})
	if err != nil {
		return nil, err
	}
	return parseReplies(content)
}

// Oracle casts a reading from a screenshot plus an optional question.
func (c *Client) Oracle(ctx context.Context, image []byte, question string) (*OracleResult, error) {
	content, err := c.chat(ctx, "oracle", []Message{imageMessage(oraclePrompt(question), image)})
	if err != nil {
		return nil, err
	}
	return parseOracle(content), nil
}

// ─── Transport ──────────────────────────────────────────────────────────────

// chat posts one relay request and returns the model's text content.
func (c *Client) chat(ctx context.Context, action string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(relayRequest{Action: action, Messages: messages, Model: c.cfg.Model})
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RelayURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s response: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		relayErr := &RelayError{Status: resp.StatusCode, Message: "relay request failed"}
		if err := json.Unmarshal(raw, relayErr); err != nil {
			relayErr.Details = string(raw)
		}
		return "", relayErr
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return "", fmt.Errorf("decode %s response: %w", action, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%s response: no choices", action)
	}
	return chat.Choices[0].Message.Content, nil
}

func imageMessage(prompt string, image []byte) Message {
	return Message{
		Role:    "user",
		Content: []ContentPart{imagePart(image), {Type: "text", Text: prompt}},
	}
}

func imagePart(image []byte) ContentPart {
	return ContentPart{
		Type:     "image_url",
		ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)},
	}
}
