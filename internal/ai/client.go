// Package ai relays chat transcripts to an OpenAI-compatible endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client calls a /chat/completions endpoint. It holds no transcript
// state; the caller sends the full message history on every request.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// IsConfigured reports whether an upstream endpoint is set.
func (c *Client) IsConfigured() bool {
	return c.config.BaseURL != ""
}

const systemPrompt = "You are an expert signal-integrity and power-integrity reviewer. " +
	"The user has submitted a hardware design for review. Answer questions about " +
	"transmission-line behavior, return paths, PDN integrity, via transitions, " +
	"crosstalk, and packaging. Be specific and practical; say so when a question " +
	"needs the actual design files to answer."

// Complete sends the transcript and returns the assistant reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	withSystem := make([]Message, 0, len(messages)+1)
	withSystem = append(withSystem, Message{Role: "system", Content: systemPrompt})
	withSystem = append(withSystem, messages...)

	reqBody := map[string]interface{}{
		"model":    c.config.Model,
		"messages": withSystem,
		"stream":   false,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
