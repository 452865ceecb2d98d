package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
)

// Message is one prior turn handed to the chat model.
type Message struct {
	Role    string // "user" or "model"
	Content string
}

// Usage reports token consumption for a completed generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type RateLimits struct {
	RPM int
	TPM int
}

// GeminiClient wraps the Gemini API with a circuit breaker and a client-side
// rate limiter. All chat and structured-extraction calls go through it.
type GeminiClient struct {
	client      *genai.Client
	chatModel   string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	timeout     time.Duration
}

func NewGeminiClient(cfg *config.Config) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiChat",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), maxInt(limits.RPM/10, 1))

	return &GeminiClient{
		client:      client,
		chatModel:   cfg.GeminiChatModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		timeout:     time.Duration(cfg.ChatTimeoutSeconds) * time.Second,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000}
	default:
		return RateLimits{RPM: 10, TPM: 250000}
	}
}

// GenerateStream runs a streaming chat completion. onToken is invoked for
// each partial text fragment in order. The returned usage is best-effort;
// a zero CompletionTokens falls back to an estimate at the call site.
func (gc *GeminiClient) GenerateStream(ctx context.Context, systemPrompt string, history []Message, userMessage string, onToken func(string)) (Usage, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", gc.chatModel),
		attribute.Int("gemini.history_turns", len(history)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return Usage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	model := gc.client.GenerativeModel(gc.chatModel)
	model.SetTemperature(0.7)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	cs := model.StartChat()
	for _, m := range history {
		cs.History = append(cs.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	// The breaker only gates stream establishment; mid-stream errors are
	// surfaced to the caller directly.
	res, err := gc.breaker.Execute(func() (interface{}, error) {
		iter := cs.SendMessageStream(ctx, genai.Text(userMessage))
		first, err := iter.Next()
		if err != nil {
			return nil, err
		}
		return &streamState{iter: iter, first: first}, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return Usage{}, err
	}

	state := res.(*streamState)
	var usage Usage

	emit := func(resp *genai.GenerateContentResponse) {
		if text := ExtractText(resp); text != "" {
			onToken(text)
		}
		if resp.UsageMetadata != nil {
			usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
	}

	emit(state.first)
	for {
		resp, err := state.iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.stream_error", true))
			return usage, err
		}
		emit(resp)
	}

	return usage, nil
}

type streamState struct {
	iter  *genai.GenerateContentResponseIterator
	first *genai.GenerateContentResponse
}

// GenerateJSON issues one structured call with a JSON response MIME type and
// unmarshals the result into out.
func (gc *GeminiClient) GenerateJSON(ctx context.Context, prompt string, out interface{}) error {
	text, err := gc.generate(ctx, prompt, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), out); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

// GenerateText issues one plain-text call.
func (gc *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return gc.generate(ctx, prompt, false)
}

func (gc *GeminiClient) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.chatModel)
		model.SetTemperature(0.2)
		if jsonMode {
			model.ResponseMIMEType = "application/json"
		}
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return ExtractText(resp), nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}
	return result.(string), nil
}

// ExtractText flattens the text parts of a generation response.
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// stripCodeFence removes a wrapping ```json fence some models emit even in
// JSON mode.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
