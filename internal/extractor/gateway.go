package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/logger"
)

// ErrNotConfigured is returned when the gateway URL or key is missing.
var ErrNotConfigured = errors.New("llm gateway not configured")

// GatewayConfig points at an OpenAI-style chat completions endpoint.
type GatewayConfig struct {
	URL          string
	APIKey       string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
}

// Gateway sends single-message prompts and decodes a JSON object from the reply.
type Gateway struct {
	cfg  GatewayConfig
	http *http.Client
	log  *logrus.Entry
}

func NewGateway(cfg GatewayConfig, log *logrus.Entry) *Gateway {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 12 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Gateway{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
		log:  log.WithField("module", "llm"),
	}
}

// CompleteJSON posts prompt and unmarshals the first JSON object in the answer into target.
func (g *Gateway) CompleteJSON(ctx context.Context, prompt string, target any) error {
	if g.cfg.URL == "" || g.cfg.APIKey == "" {
		return ErrNotConfigured
	}
	reqBody := map[string]any{
		"model": g.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.0,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	g.log.WithField("payload_len", len(data)).Debug("llm request")

	var lastErr error
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, g.cfg.HTTPTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.cfg.URL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.http.Do(req)
		if err != nil {
			lastErr = err
			g.log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		g.log.WithField("http_status", resp.StatusCode).Debug("llm raw response")

		if resp.StatusCode < 400 {
			if inner := extractContentFromChoices(body); inner != "" {
				if err := json.Unmarshal([]byte(inner), target); err == nil {
					lastErr = nil
					return nil
				}
			}
			if fallback := extractJSON(string(body)); fallback != "" {
				if err := json.Unmarshal([]byte(fallback), target); err == nil {
					lastErr = nil
					return nil
				}
			}
		}

		lastErr = fmt.Errorf("no JSON found in LLM output (status %d)", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.cfg.MaxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return fmt.Errorf("llm completion failed: %w", lastErr)
	}
	return nil
}

// extractContentFromChoices reads choices[0].message.content and pulls the JSON out of it.
func extractContentFromChoices(body []byte) string {
	var obj struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil || len(obj.Choices) == 0 {
		return ""
	}
	return extractJSON(obj.Choices[0].Message.Content)
}

// extractJSON finds the first balanced JSON object in a string.
// Markdown fences are stripped first.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```", "`"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}
