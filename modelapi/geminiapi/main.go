package geminiapi

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/option"

	"counselordev/logger"
	"counselordev/modelapi"
)

const (
	GEMINI_MODEL_NAME = "gemini-2.5-flash"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
}

type Gemini struct {
	logger    *logger.LogMiddleware
	client    *genai.Client
	semaphore *semaphore.Weighted
}

func exponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

func Connect(ctx context.Context, args GeminiConnectProps) *Gemini {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))
	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	GEMINI_KEY := os.Getenv("GEMINI_SECRET_KEY")

	client, err := genai.NewClient(ctx, option.WithAPIKey(GEMINI_KEY))
	if err != nil {
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client", zap.Error(err))
		os.Exit(21)
	}

	return &Gemini{logger: args.Logger, client: client, semaphore: sem}
}

// CounselorTurn sends one student message with conversation history and
// returns the raw model text: the conversational reply plus the embedded
// lead JSON block. Extraction happens downstream.
func (g *Gemini) CounselorTurn(ctx context.Context, history []modelapi.ChatMessage, userMessage string) (string, error) {
	tracer := otel.Tracer("geminiapi/CounselorTurn")
	ctx, span := tracer.Start(ctx, "CounselorTurn")
	defer span.End()

	span.SetAttributes(
		attribute.Int("history.length", len(history)),
		attribute.Int("message.length", len(userMessage)),
	)

	if err := g.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer g.semaphore.Release(1)

	model := g.client.GenerativeModel(GEMINI_MODEL_NAME)
	model.SystemInstruction = genai.NewUserContent(genai.Text(modelapi.COUNSELOR_SYSTEM_PROMPT))
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
	}

	cs := model.StartChat()
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == modelapi.SYSTEM {
			continue
		}
		role := "user"
		if msg.Role == modelapi.ASSISTANT {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	var resp *genai.GenerateContentResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))

		resp, err = cs.SendMessage(ctx, genai.Text(userMessage))
		if err == nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
			break
		}

		if err != nil {
			span.RecordError(err)
			g.logger.Logger(ctx).Warn("[GeminiAPI] Error generating counselor turn, retrying...",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
				zap.Int("maxRetries", maxRetries))
		} else {
			span.AddEvent("EmptyResponse")
			g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty or invalid response, retrying...",
				zap.Int("attempt", attempt+1),
				zap.Int("maxRetries", maxRetries))
		}

		if attempt < maxRetries-1 {
			delay := exponentialBackoff(attempt)
			span.AddEvent("Backoff", trace.WithAttributes(attribute.Int64("delayMs", delay.Milliseconds())))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Final error generating counselor turn after retries", zap.Error(err))
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no usable candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}

	span.AddEvent("Counselor turn successful")
	return strings.TrimSpace(out.String()), nil
}
