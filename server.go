package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"

	"counselordev/database/postgres"
	"counselordev/leadlog"
	"counselordev/leadlog/csvfile"
	"counselordev/leadlog/sheetsapi"
	"counselordev/logger"
	"counselordev/modelapi/deepgramapi"
	"counselordev/modelapi/geminiapi"
	"counselordev/modelapi/groqapi"
	"counselordev/session"
	"counselordev/telegram"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})
	Logger := LogMiddleware.Logger(ctx)

	db := postgres.Connect(ctx, postgres.DatabaseConnectProps{Logger: LogMiddleware})

	// Lead persistence: sheet first, local CSV when the sheet is down. A
	// failed sheet connection at startup leaves the CSV as the only store.
	var primary leadlog.Store
	sheet, err := sheetsapi.Connect(ctx, sheetsapi.SheetsConnectProps{Logger: LogMiddleware})
	if err != nil {
		Logger.Warn("[Server] Lead sheet unavailable, logging leads locally only", zap.Error(err))
	} else {
		primary = sheet
	}
	fallback := csvfile.Connect(ctx, csvfile.CSVConnectProps{Logger: LogMiddleware, Path: os.Getenv("LEADS_CSV_PATH")})
	leadRouter := leadlog.Connect(ctx, leadlog.RouterConnectProps{Logger: LogMiddleware, Primary: primary, Fallback: fallback})

	geminiClient := geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: LogMiddleware})
	groqClient := groqapi.Connect(ctx, groqapi.GroqConnectProps{Logger: LogMiddleware})
	deepgramClient := deepgramapi.Connect(LogMiddleware)
	sessions := session.NewStore()

	telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
		Logger:   LogMiddleware,
		Gemini:   geminiClient,
		Groq:     groqClient,
		Deepgram: deepgramClient,
		DB:       db,
		Sessions: sessions,
		Leads:    leadRouter,
	})

	router := chi.NewRouter()
	router.Use(requestLoggerMiddleware(LogMiddleware))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Get("/api/audit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(leadRouter.Audit())
	})

	go func() {
		handler := otelhttp.NewHandler(router, "counselor-http")
		Logger.Info("[Server] HTTP server starting", zap.String("port", port))
		if err := http.ListenAndServe(":"+port, handler); err != nil {
			Logger.Error("[Server] HTTP server stopped", zap.Error(err))
		}
	}()

	if production == false {
		Logger.Info("[Telegram] Bot starting in development mode")
	} else {
		Logger.Info("[Telegram] Bot starting in production mode")
	}

	// Start Telegram bot (blocking call)
	telegramBot.Listen(ctx)
}

func requestLoggerMiddleware(logger *logger.LogMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
			next.ServeHTTP(w, r)
			logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
		})
	}
}
