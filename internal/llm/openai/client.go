package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsheet/internal/llm"
)

// Call implements llm.Transport against the chat/completions API. Image
// attachments go out as data-URL content parts; the JSON Schema rides in a
// trailing system message to constrain the json_object output.
func (c *Client) Call(ctx context.Context, p llm.Prompt) ([]byte, error) {
	start := time.Now()

	userContent := []map[string]any{
		{"type": "text", "text": p.User},
	}
	for _, att := range p.Attachments {
		userContent = append(userContent, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": att.DataURL},
		})
	}

	messages := []map[string]any{
		{"role": "system", "content": p.System},
		{"role": "user", "content": userContent},
	}
	if p.SchemaJSON != nil {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": "JSON Schema:\n" + mustJSON(p.SchemaJSON),
		})
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("openai.call.http_error",
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in openai response")
	}

	content := llm.StripCodeFences([]byte(strings.TrimSpace(cc.Choices[0].Message.Content)))
	c.log.Info("openai.call.ok",
		"model", c.cfg.Model,
		"content_bytes", len(content),
		"attachments", len(p.Attachments),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			c.log.Warn("openai response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			base := &llm.TransportError{Provider: "openai", Status: resp.StatusCode, Body: string(raw)}
			return nil, llm.NewRateLimitError("openai", base, retryAfter)
		}
		return nil, &llm.TransportError{Provider: "openai", Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
