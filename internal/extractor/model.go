package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kayis-rahman/synapse/internal/types"
)

// Completer models the external `complete(prompt) -> text` collaborator.
// ModelCompleter is the concrete Completer backed by the Anthropic API;
// tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired signals that model-assisted extraction needs an API key
// either passed in or from the environment.
var ErrAPIKeyRequired = errors.New("extractor: ANTHROPIC_API_KEY required for model-assisted extraction")

// ModelCompleter wraps the Anthropic API for model-assisted extraction,
// with a retry-with-backoff call shape and env-var precedence for the API
// key.
type ModelCompleter struct {
	client         anthropic.Client
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
}

// NewModelCompleter builds a Completer. ANTHROPIC_API_KEY in the
// environment takes precedence over an explicit apiKey argument.
func NewModelCompleter(apiKey string) (*ModelCompleter, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	return &ModelCompleter{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          defaultModel,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

func (m *ModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := m.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := m.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("extractor: model returned no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("extractor: unexpected response block type %s", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("extractor: non-retryable model error: %w", err)
		}
	}
	return "", fmt.Errorf("extractor: model call failed after %d attempts: %w", m.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

const modelPrompt = `You are a memory extractor for an AI agent's conversation history.

From the exchange below, extract:
1. Durable facts worth remembering long-term (preferences, configuration, decisions, declarative statements).
2. Episodes: a (situation, action, outcome, lesson) record when the exchange describes trying something and it working or failing.

RULES:
1. Output ONLY a valid JSON object, no prose, no markdown fences.
2. The object MUST have exactly two keys: "facts" and "episodes".
3. Each fact has: "scope", "category", "key", "value", "confidence" (0 to 1).
4. Each episode has: "situation", "action", "outcome", "lesson", "lesson_type" (one of pattern, antipattern, procedure, warning), "confidence", "quality" (0 to 1).
5. If nothing qualifies, return empty arrays for either or both keys.

Exchange:
%s`

type modelResponse struct {
	Facts []struct {
		Scope      string  `json:"scope"`
		Category   string  `json:"category"`
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"facts"`
	Episodes []struct {
		Situation  string  `json:"situation"`
		Action     string  `json:"action"`
		Outcome    string  `json:"outcome"`
		Lesson     string  `json:"lesson"`
		LessonType string  `json:"lesson_type"`
		Confidence float64 `json:"confidence"`
		Quality    float64 `json:"quality"`
	} `json:"episodes"`
}

// runModel delegates extraction to completer with a fixed prompt and
// strict schema; a parse failure is reported to the caller so it can fall
// back to heuristic extraction.
func runModel(ctx context.Context, completer Completer, exchange string) (AnalysisResult, error) {
	raw, err := completer.Complete(ctx, fmt.Sprintf(modelPrompt, exchange))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("model completion: %w", err)
	}

	var parsed modelResponse
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &parsed); err != nil {
		return AnalysisResult{}, fmt.Errorf("parsing model output: %w", err)
	}

	var out AnalysisResult
	for _, f := range parsed.Facts {
		if f.Key == "" || f.Value == "" {
			continue
		}
		out.Facts = append(out.Facts, FactCandidate{
			Scope: orDefault(f.Scope, "global"), Category: orDefault(f.Category, "declarative"),
			Key: f.Key, Value: f.Value, Confidence: f.Confidence,
		})
	}
	for _, e := range parsed.Episodes {
		if e.Situation == "" || e.Lesson == "" {
			continue
		}
		out.Episodes = append(out.Episodes, EpisodeCandidate{
			Situation: e.Situation, Action: e.Action, Outcome: e.Outcome, Lesson: e.Lesson,
			LessonType: types.LessonType(orDefault(e.LessonType, string(types.LessonProcedure))),
			Confidence: e.Confidence, Quality: e.Quality,
		})
	}
	return out, nil
}

func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
