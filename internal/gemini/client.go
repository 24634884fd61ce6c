package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"jobtrack-engine/internal/domain"
)

const (
	defaultBaseURL         = "https://generativelanguage.googleapis.com"
	defaultModel           = "gemini-2.5-flash"
	defaultMaxOutputTokens = 1500
	defaultMaxBodyChars    = 3000

	truncationMarker = "... [truncated]"
)

// SkipError means one email yielded no usable classification. The batch
// loop skips the email and moves on; it is never a reason to abort a run.
type SkipError struct {
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *SkipError) Unwrap() error { return e.Err }

func skipf(err error, format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...), Err: err}
}

type Options struct {
	APIKey            string
	Model             string
	BaseURL           string
	MaxOutputTokens   int
	MaxBodyChars      int
	RequestsPerSecond float64
}

type Client struct {
	hc           *http.Client
	apiKey       string
	model        string
	baseURL      string
	maxTokens    int
	maxBodyChars int
	limiter      *rate.Limiter
	log          *logrus.Logger
}

// New returns a classification client. A missing API key is a fatal
// configuration error, not a per-email skip.
func New(opts Options, log *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = defaultMaxOutputTokens
	}
	if opts.MaxBodyChars <= 0 {
		opts.MaxBodyChars = defaultMaxBodyChars
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	return &Client{
		hc:           &http.Client{Timeout: 60 * time.Second},
		apiKey:       opts.APIKey,
		model:        opts.Model,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		maxTokens:    opts.MaxOutputTokens,
		maxBodyChars: opts.MaxBodyChars,
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:          log,
	}, nil
}

// ---- wire types (Gemini generateContent REST shape) ----

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Classify sends one email through the model and returns the validated
// extraction. Every classification-level failure (transport, non-200,
// blocked candidates, unparseable or invalid JSON) comes back as a
// *SkipError; there are no retries here.
func (c *Client) Classify(ctx context.Context, subject, body string) (*domain.Extraction, error) {
	if len(body) > c.maxBodyChars {
		cut := c.maxBodyChars
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + truncationMarker
	}

	text, err := c.generate(ctx, classifyPrompt(subject, body))
	if err != nil {
		return nil, err
	}

	data, err := parseExtraction(text)
	if err != nil {
		c.log.WithField("raw", text).Debug("classification response rejected")
		return nil, err
	}
	return data, nil
}

// generate performs one non-streaming completion call with deterministic
// sampling and returns the first candidate's text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.0,
			MaxOutputTokens: c.maxTokens,
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", skipf(err, "gemini request failed")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", skipf(nil, "gemini api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", skipf(err, "gemini response not json")
	}

	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return "", skipf(nil, "content was blocked: %s", out.PromptFeedback.BlockReason)
		}
		return "", skipf(nil, "no candidates in gemini response")
	}

	cand := out.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", skipf(nil, "candidate content empty (finish reason %q)", cand.FinishReason)
	}

	return cand.Content.Parts[0].Text, nil
}

// parseExtraction turns raw model text into a validated extraction. The
// recovery pass only runs on the truncation signature; everything else
// fails outright.
func parseExtraction(text string) (*domain.Extraction, error) {
	cleaned := stripFences(text)

	var data domain.Extraction
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		fixed, ok := repairTruncated(cleaned)
		if !ok {
			return nil, skipf(err, "json parse error")
		}
		if err := json.Unmarshal([]byte(fixed), &data); err != nil {
			return nil, skipf(err, "could not fix truncated json")
		}
	}

	if data.EmailType == "" {
		return nil, skipf(nil, "missing email_type in gemini response")
	}
	if data.Company == "" && data.Position == "" {
		return nil, skipf(nil, "missing both company and position in gemini response")
	}

	if data.Company == "" {
		data.Company = "Unknown"
	}
	if data.Position == "" {
		data.Position = "Unknown"
	}

	return &data, nil
}

// Ping sends a trivial prompt and returns the model's reply. Used by the
// credential self-test.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.generate(ctx, "Say 'Hello' if you can read this.")
}

type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// ListModels queries the models endpoint with the configured key.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/models?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini list models: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini list models: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gemini list models: %w", err)
	}
	return out.Models, nil
}
