// Package summarizer provides a stateless client for the remote summarization capability.
//
// Every call sends a single user turn to the Gemini generateContent endpoint. No
// conversation state is kept between calls, so the instruction template travels
// with each request.
package summarizer

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

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
)

// SummaryPrefix is the literal the model is asked to start its answer with.
const SummaryPrefix = "berikut merupakan ringkasan di papan tulis :"

// instructionTemplate asks for an Indonesian structured summary, tells the model
// to keep short or complete input whole, and requests SummaryPrefix.
const instructionTemplate = "Ringkas secara terstruktur dari teks berikut menjadi pengetahuan yang mudah " +
	"untuk dipahami dengan menggunakan bahasa indonesia, akan tetapi jika dideteksi tidak perlu diringkas " +
	"jangan diringkas pengetahuan lengkapnya, nanti outputnya kasih awalan " + SummaryPrefix + " %s"

// HTTP headers and API paths.
const (
	headerContentType = "Content-Type"
	headerAPIKey      = "x-goog-api-key"
	contentTypeJSON   = "application/json"
	generatePathFmt   = "%s/models/%s:generateContent"
	maxResponseBytes  = 1 << 20
)

var (
	// ErrAPIKeyMissing indicates that no credential is configured.
	ErrAPIKeyMissing = errors.New("summarizer api key is not configured")
	// ErrNoCandidates indicates that the response carried no usable text.
	ErrNoCandidates = errors.New("summarizer returned no text")
)

// Config holds the client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Client implements core.Summarizer.
type Client struct {
	httpClient *http.Client
	config     Config
	log        *logger.Logger
}

// NewClient creates a summarization client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		log:        log,
	}
}

// Prompt renders the instruction template around the detected text.
func Prompt(text string) string {
	return fmt.Sprintf(instructionTemplate, text)
}

// Summarize sends one instruction-bearing message and returns the model's answer verbatim.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: %w", core.ErrSummarization, core.ErrEmptyText)
	}

	if c.config.APIKey == "" {
		return "", fmt.Errorf("%w: %w", core.ErrSummarization, ErrAPIKeyMissing)
	}

	summary, err := c.generate(ctx, Prompt(text))
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrSummarization, err)
	}

	c.log.Info("Summarizer returned %d characters for %d characters of input", len(summary), len(text))

	return summary, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	requestBody, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(generatePathFmt, c.config.BaseURL, c.config.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAPIKey, c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to %s: %w", c.config.BaseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed generateResponse

	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("API error (status %d, %s): %s", resp.StatusCode, parsed.Error.Status, parsed.Error.Message)
		}

		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	return firstCandidateText(&parsed)
}

func firstCandidateText(resp *generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	var builder strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		builder.WriteString(p.Text)
	}

	if builder.Len() == 0 {
		return "", ErrNoCandidates
	}

	return builder.String(), nil
}
