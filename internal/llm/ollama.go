package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOllamaModel = "llama3:8b"

// Generation defaults tuned for grounded answering: low temperature and a
// tight sampling pool keep the model close to the supplied context.
const (
	defaultTemperature   = 0.2
	defaultTopP          = 0.7
	defaultTopK          = 20
	defaultRepeatPenalty = 1.1
)

// OllamaClient streams completions from a local Ollama instance.
type OllamaClient struct {
	client  *http.Client
	baseURL string
	model   string
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	EvalCount  int    `json:"eval_count"`
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   model,
	}
}

// Name returns the provider name.
func (c *OllamaClient) Name() string {
	return "ollama"
}

func (c *OllamaClient) buildRequest(req *CompletionRequest, stream bool) ollamaGenerateRequest {
	opts := ollamaOptions{
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		RepeatPenalty: defaultRepeatPenalty,
		NumCtx:        req.NumCtx,
		NumPredict:    req.MaxTokens,
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	if opts.TopK == 0 {
		opts.TopK = defaultTopK
	}
	return ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  req.Prompt,
		Stream:  stream,
		Options: opts,
	}
}

// Complete sends a blocking completion request.
func (c *OllamaClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body, err := json.Marshal(c.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &CompletionResponse{
		Content:    out.Response,
		Model:      c.model,
		TokensOut:  out.EvalCount,
		StopReason: out.DoneReason,
		Truncated:  out.DoneReason == "length",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request. Ollama streams one
// JSON object per line; the final object carries done_reason.
func (c *OllamaClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	body, err := json.Marshal(c.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var content bytes.Buffer
	var tokensOut int
	var stopReason string
	index := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}

		if chunk.Response != "" {
			content.WriteString(chunk.Response)
			if err := callback(chunk.Response, index); err != nil {
				return nil, err
			}
			index++
		}
		if chunk.Done {
			stopReason = chunk.DoneReason
			tokensOut = chunk.EvalCount
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return &CompletionResponse{
		Content:    content.String(),
		Model:      c.model,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		Truncated:  stopReason == "length",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (c *OllamaClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, string(payload))
	}
	return resp, nil
}
