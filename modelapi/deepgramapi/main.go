// Package deepgramapi transcribes voice notes so spoken questions flow
// through the same extraction pipeline as typed ones.
package deepgramapi

import (
	"bytes"
	"context"
	"fmt"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"counselordev/logger"
)

type DeepgramAPI struct {
	logger *logger.LogMiddleware
	dg     *api.Client
}

func Connect(logger *logger.LogMiddleware) *DeepgramAPI {
	c := client.NewRESTWithDefaults()
	dg := api.New(c)

	return &DeepgramAPI{logger: logger, dg: dg}
}

// Transcribe turns a voice note into text. Students mix languages freely, so
// language detection stays on "multi".
func (d *DeepgramAPI) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	tracer := otel.Tracer("deepgramapi/Transcribe")
	ctx, span := tracer.Start(ctx, "Transcribe")
	defer span.End()

	span.SetAttributes(attribute.Int("audio.data.size", len(audioData)))
	log := d.logger.Logger(ctx)

	options := &interfaces.PreRecordedTranscriptionOptions{
		Punctuate:   true,
		SmartFormat: true,
		Language:    "multi",
		Model:       "nova-3",
	}

	res, err := d.dg.FromStream(ctx, bytes.NewReader(audioData), options)
	if err != nil {
		span.RecordError(err)
		log.Error("[DeepgramAPI] Voice note transcription failed", zap.Error(err))
		return "", fmt.Errorf("deepgram transcription failed: %w", err)
	}

	if res != nil && res.Results != nil && len(res.Results.Channels) > 0 {
		channel := res.Results.Channels[0]
		if len(channel.Alternatives) > 0 {
			transcription := channel.Alternatives[0].Transcript
			span.AddEvent("Transcription successful",
				trace.WithAttributes(attribute.Int("transcription.length", len(transcription))))
			log.Info("[DeepgramAPI] Voice note transcribed",
				zap.Int("transcription_length", len(transcription)))
			return transcription, nil
		}
	}

	span.AddEvent("No transcription found in Deepgram response")
	log.Warn("[DeepgramAPI] No transcription found in response")
	return "", fmt.Errorf("no transcription found in response")
}
