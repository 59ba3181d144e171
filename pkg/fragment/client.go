// Package fragment turns a natural-language prompt into one typed dashboard
// fragment via a local Ollama model. It owns prompt construction, the HTTP
// call, and the repair-heavy parsing of the model's JSON output. The rest of
// the system never sees raw LLM text.
package fragment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/personalolive/oliveboard/pkg/spec"
)

// Source produces a dashboard fragment for a prompt. The board service
// depends on this interface so tests can substitute a fake.
type Source interface {
	Generate(ctx context.Context, prompt, schemaDDL string) (*spec.Fragment, error)
}

// Config holds connection settings for the Ollama endpoint.
type Config struct {
	BaseURL string        // e.g. http://localhost:11434
	Model   string        // e.g. llama3.2
	Timeout time.Duration // per-request timeout
}

// DefaultConfig returns the standard local-Ollama settings.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2",
		Timeout: 60 * time.Second,
	}
}

// Client handles communication with Ollama.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates an Ollama-backed fragment source.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate asks the model for a dashboard fragment answering the prompt
// against the given schema. The returned fragment is parsed and cleaned;
// widgets with unrecognized kinds are already dropped.
func (c *Client) Generate(ctx context.Context, prompt, schemaDDL string) (*spec.Fragment, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: BuildUserPrompt(prompt, schemaDDL),
		Stream: false,
		// Low temperature for more deterministic JSON output.
		Options: generateOptions{Temperature: 0.1},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("fragment: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("fragment: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fragment: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fragment: Ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("fragment: failed to parse response: %w", err)
	}

	frag, err := ParseResponse(genResp.Response)
	if err != nil {
		return nil, fmt.Errorf("fragment: %w", err)
	}
	return frag, nil
}

// HealthCheck verifies that Ollama is accessible.
func (c *Client) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("fragment: failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fragment: Ollama is unreachable at %s: %w (is Ollama running?)", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("fragment: Ollama returned status %d", resp.StatusCode)
	}
	return nil
}
