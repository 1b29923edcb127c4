package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultClassificationTimeout is the hard bound on ShouldUseRAG: on
// timeout or any error the classifier fails open to true rather than ever
// blocking or silently skipping retrieval.
const DefaultClassificationTimeout = 5000 * time.Millisecond

const defaultClassifierModel = "llama3.2:1b"
const defaultOllamaHost = "http://localhost:11434"

// maxHistoryMessages and maxMessageChars bound the prompt per §4.10: the
// last three messages of history, each truncated to 150 characters.
const maxHistoryMessages = 3
const maxMessageChars = 150

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
}

// IntentClassifierConfig configures an IntentClassifier.
type IntentClassifierConfig struct {
	Model      string
	Timeout    time.Duration
	OllamaHost string
}

// DefaultIntentClassifierConfig returns sensible defaults.
func DefaultIntentClassifierConfig() IntentClassifierConfig {
	return IntentClassifierConfig{
		Model:      defaultClassifierModel,
		Timeout:    DefaultClassificationTimeout,
		OllamaHost: defaultOllamaHost,
	}
}

// IntentClassifier decides whether a chat turn should trigger retrieval.
// It asks a small local LLM for a single YES/NO token and fails open to
// true on any error or timeout, since skipping retrieval it actually
// needed is a worse failure mode than running it unnecessarily.
type IntentClassifier struct {
	client *http.Client
	config IntentClassifierConfig
}

// NewIntentClassifier constructs an IntentClassifier, applying defaults for
// zero-valued config fields.
func NewIntentClassifier(config IntentClassifierConfig) *IntentClassifier {
	if config.Model == "" {
		config.Model = defaultClassifierModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClassificationTimeout
	}
	if config.OllamaHost == "" {
		config.OllamaHost = defaultOllamaHost
	}
	return &IntentClassifier{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// ShouldUseRAG returns whether userMessage warrants a retrieval pass, given
// recentHistory for context. It never returns an error: any failure fails
// open to true.
func (c *IntentClassifier) ShouldUseRAG(ctx context.Context, userMessage string, recentHistory []Message) bool {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prompt := buildClassificationPrompt(userMessage, recentHistory)

	reqBody, err := json.Marshal(generateRequest{Model: c.config.Model, Prompt: prompt, Stream: false})
	if err != nil {
		slog.Warn("intent classifier: marshal request failed, failing open", slog.String("error", err.Error()))
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.OllamaHost+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		slog.Warn("intent classifier: build request failed, failing open", slog.String("error", err.Error()))
		return true
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("intent classifier: request failed, failing open", slog.String("error", err.Error()))
		return true
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("intent classifier: unexpected status, failing open", slog.Int("status", resp.StatusCode))
		return true
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("intent classifier: decode response failed, failing open", slog.String("error", err.Error()))
		return true
	}

	answer := strings.ToUpper(strings.TrimSpace(result.Response))
	return answer == "YES"
}

// buildClassificationPrompt serializes the last three history messages
// (each truncated to 150 characters) as "Role: content" lines, followed by
// the current message and a binary-answer instruction.
func buildClassificationPrompt(userMessage string, recentHistory []Message) string {
	history := recentHistory
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, truncate(m.Content, maxMessageChars))
	}
	fmt.Fprintf(&b, "User: %s\n\n", truncate(userMessage, maxMessageChars))
	b.WriteString("Does answering this message require retrieving information from the indexed project files? Respond with exactly one word: YES or NO.")

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
