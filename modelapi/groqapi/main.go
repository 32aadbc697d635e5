// Package groqapi is the fallback model provider, used for a turn when
// Gemini fails after retries. Same prompt contract, different engine.
package groqapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"counselordev/httpmiddleware"
	"counselordev/logger"
	"counselordev/modelapi"
)

const (
	GROQ_MODEL_NAME = "llama-3.3-70b-versatile"
	GROQ_URL        = "https://api.groq.com/openai/v1/chat/completions"
)

type ChatRequestInput struct {
	Model     string                 `json:"model"`
	Messages  []modelapi.ChatMessage `json:"messages"`
	MaxTokens int                    `json:"max_tokens"`
}

type GroqResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GroqConnectProps struct {
	Logger *logger.LogMiddleware
}

type Groq struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
}

func Connect(ctx context.Context, args GroqConnectProps) *Groq {
	tracer := otel.Tracer("groqapi/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))
	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	return &Groq{logger: args.Logger, semaphore: sem}
}

type MakeAPIRequestProps struct {
	Retries      int
	RequestInput ChatRequestInput
}

// Used for retry logic.
func GetExponentialDelaySeconds(retryNumber int) int {
	return int(5 * math.Pow(2, float64(retryNumber)))
}

func (g *Groq) MakeAPIRequest(ctx context.Context, args MakeAPIRequestProps) (*GroqResponse, error) {
	tracer := otel.Tracer("groqapi/MakeAPIRequest")
	ctx, span := tracer.Start(ctx, "MakeAPIRequest")
	defer span.End()

	API_KEY := os.Getenv("GROQ_SECRET_KEY")

	span.SetAttributes(
		attribute.String("api.url", GROQ_URL),
		attribute.String("request.model", args.RequestInput.Model),
	)

	jsonData, err := json.Marshal(args.RequestInput)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not generate request body: %w", err)
	}

	retries := args.Retries
	originalRetries := args.Retries

	if err := g.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer g.semaphore.Release(1)

	for retries > 0 {
		sleepTime := GetExponentialDelaySeconds(originalRetries - retries)

		respBody, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
			Method: "POST",
			Url:    GROQ_URL,
			Body:   bytes.NewBuffer(jsonData),
			Headers: map[string]string{
				"authorization": "Bearer " + API_KEY,
				"content-type":  "application/json",
			},
		})

		if err != nil {
			span.RecordError(err)
			g.logger.Logger(ctx).Error(
				"[GroqAPI] Could not make request to Groq. Retrying after sleeping.",
				zap.Error(err),
				zap.Int("retries_left", retries),
				zap.Int("sleep_time", sleepTime))
			retries -= 1
			time.Sleep(time.Duration(sleepTime) * time.Second)
			continue
		}

		var messageResponse GroqResponse
		err = json.Unmarshal(respBody, &messageResponse)
		if err != nil || len(messageResponse.Choices) == 0 {
			span.RecordError(err)
			retries -= 1
			g.logger.Logger(ctx).Error(
				"[GroqAPI] Could not parse Groq response. Retrying after sleeping.",
				zap.Error(err),
				zap.Int("retries_left", retries),
				zap.Int("sleep_time", sleepTime),
				zap.String("response_body", string(respBody)))
			time.Sleep(time.Duration(sleepTime) * time.Second)
			continue
		}

		span.AddEvent("Request successful")
		return &messageResponse, nil
	}

	span.AddEvent("All retries exhausted")
	return nil, fmt.Errorf("groq requests failed")
}

// CounselorTurn mirrors geminiapi.CounselorTurn on the fallback engine.
func (g *Groq) CounselorTurn(ctx context.Context, history []modelapi.ChatMessage, userMessage string) (string, error) {
	tracer := otel.Tracer("groqapi/CounselorTurn")
	ctx, span := tracer.Start(ctx, "CounselorTurn")
	defer span.End()

	span.SetAttributes(attribute.Int("history.length", len(history)))

	messages := []modelapi.ChatMessage{
		{Role: modelapi.SYSTEM, Content: modelapi.COUNSELOR_SYSTEM_PROMPT},
	}
	messages = append(messages, history...)
	messages = append(messages, modelapi.ChatMessage{Role: modelapi.USER, Content: userMessage})

	resp, err := g.MakeAPIRequest(ctx, MakeAPIRequestProps{
		Retries: 3,
		RequestInput: ChatRequestInput{
			Model:     GROQ_MODEL_NAME,
			MaxTokens: 2048,
			Messages:  messages,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Content) == 0 {
		return "", fmt.Errorf("no response received")
	}

	return resp.Choices[0].Message.Content, nil
}
