package telegram

import (
	"context"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"counselordev/database/postgres"
	"counselordev/extract"
	"counselordev/httpmiddleware"
	"counselordev/leadlog"
	"counselordev/leads"
	"counselordev/logger"
	"counselordev/modelapi"
	"counselordev/modelapi/deepgramapi"
	"counselordev/modelapi/geminiapi"
	"counselordev/modelapi/groqapi"
	"counselordev/session"
)

const (
	greeting = "Hi! I'm your study-abroad counselor. Ask me anything about universities, loans, or visas — where are you thinking of studying?"
	saved    = "Thanks for chatting! Your details are saved — a counselor will reach out soon. Send /start any time to begin a new conversation."
	notSaved = "Something went wrong saving your details. Please try /done again in a moment."
	troubled = "Sorry, I'm having trouble answering right now. Please try again in a moment."
)

type TelegramConnectProps struct {
	Logger   *logger.LogMiddleware
	Gemini   *geminiapi.Gemini
	Groq     *groqapi.Groq
	Deepgram *deepgramapi.DeepgramAPI
	DB       *postgres.Database
	Sessions *session.Store
	Leads    *leadlog.Router
}

type Telegram struct {
	logger   *logger.LogMiddleware
	bot      *tgbotapi.BotAPI
	gemini   *geminiapi.Gemini
	groq     *groqapi.Groq
	deepgram *deepgramapi.DeepgramAPI
	db       *postgres.Database
	sessions *session.Store
	leads    *leadlog.Router
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	bot.Debug = os.Getenv("TELEGRAM_DEBUG") == "true"

	span.SetAttributes(attribute.String("bot.username", bot.Self.UserName))
	args.Logger.Logger(ctx).Info("[Telegram] Bot connected",
		zap.String("username", bot.Self.UserName))

	return &Telegram{
		logger:   args.Logger,
		bot:      bot,
		gemini:   args.Gemini,
		groq:     args.Groq,
		deepgram: args.Deepgram,
		db:       args.DB,
		sessions: args.Sessions,
		leads:    args.Leads,
	}
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("[Telegram] Starting message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("[Telegram] Shutting down listener")
			return
		case update := <-updates:
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	tracer := otel.Tracer("telegram/handleUpdate")
	ctx, span := tracer.Start(ctx, "handleUpdate")
	defer span.End()

	switch {
	case update.Message != nil:
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil {
		return
	}

	user := message.From
	span.SetAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.String("user.username", user.UserName),
	)

	t.registerUser(ctx, user)

	switch {
	case message.IsCommand():
		t.handleCommand(ctx, message)
	case message.Voice != nil:
		t.handleVoice(ctx, message)
	case message.Text != "":
		t.counselorTurn(ctx, message.Chat.ID, message.Text)
	}
}

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleCommand")
	ctx, span := tracer.Start(ctx, "handleCommand")
	defer span.End()

	chatID := message.Chat.ID
	span.SetAttributes(attribute.String("command", message.Command()))

	switch message.Command() {
	case "start":
		// A restart finalizes whatever the previous session collected. The
		// student asked for a fresh start, so the session is replaced even
		// when persistence fails; the audit trail keeps the failure.
		finalizeLead(ctx, t.sessions, t.leads, chatID)
		t.sessions.Reset(chatID)
		t.send(ctx, chatID, greeting, modelapi.OPENING_SUGGESTIONS)
	case "done":
		result, persisted := finalizeLead(ctx, t.sessions, t.leads, chatID)
		if !persisted {
			t.send(ctx, chatID, "Nothing to save yet — tell me a bit about your study plans first!", modelapi.OPENING_SUGGESTIONS)
			return
		}
		if result == leadlog.TotalFailure {
			t.send(ctx, chatID, notSaved, nil)
			return
		}
		t.send(ctx, chatID, saved, nil)
	default:
		t.send(ctx, chatID, "I know /start and /done. For everything else, just ask!", nil)
	}
}

func (t *Telegram) handleVoice(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleVoice")
	ctx, span := tracer.Start(ctx, "handleVoice")
	defer span.End()

	log := t.logger.Logger(ctx)

	fileURL, err := t.bot.GetFileDirectURL(message.Voice.FileID)
	if err != nil {
		log.Error("[Telegram] Could not resolve voice file URL", zap.Error(err))
		t.send(ctx, message.Chat.ID, troubled, nil)
		return
	}

	audio, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
		Method: "GET",
		Url:    fileURL,
	})
	if err != nil {
		log.Error("[Telegram] Could not download voice note", zap.Error(err))
		t.send(ctx, message.Chat.ID, troubled, nil)
		return
	}

	text, err := t.deepgram.Transcribe(ctx, audio)
	if err != nil {
		log.Error("[Telegram] Could not transcribe voice note", zap.Error(err))
		t.send(ctx, message.Chat.ID, "I couldn't make out that voice note — could you type it instead?", nil)
		return
	}

	t.counselorTurn(ctx, message.Chat.ID, text)
}

func (t *Telegram) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	tracer := otel.Tracer("telegram/handleCallbackQuery")
	ctx, span := tracer.Start(ctx, "handleCallbackQuery")
	defer span.End()

	if query.From == nil || query.Message == nil {
		return
	}

	span.SetAttributes(
		attribute.Int64("user.id", query.From.ID),
		attribute.String("callback.data", query.Data),
	)

	// Acknowledge the tap, then treat the chip text as a regular turn.
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := t.bot.Request(callback); err != nil {
		t.logger.Logger(ctx).Warn("[Telegram] Failed to answer callback query", zap.Error(err))
	}

	if strings.TrimSpace(query.Data) == "" {
		return
	}
	t.counselorTurn(ctx, query.Message.Chat.ID, query.Data)
}

// counselorTurn runs one full pipeline step: model call (with fallback),
// extraction, merge, reply. Extraction failures are absorbed here; the
// conversation always continues.
func (t *Telegram) counselorTurn(ctx context.Context, chatID int64, userText string) {
	tracer := otel.Tracer("telegram/counselorTurn")
	ctx, span := tracer.Start(ctx, "counselorTurn")
	defer span.End()

	log := t.logger.Logger(ctx)
	state := t.sessions.Get(chatID)

	var history []modelapi.ChatMessage
	for _, turn := range state.Turns() {
		history = append(history,
			modelapi.ChatMessage{Role: modelapi.USER, Content: turn.UserText},
			modelapi.ChatMessage{Role: modelapi.ASSISTANT, Content: turn.BotText},
		)
	}

	raw, err := t.gemini.CounselorTurn(ctx, history, userText)
	if err != nil {
		span.RecordError(err)
		log.Warn("[Telegram] Gemini turn failed, trying fallback model", zap.Error(err))
		raw, err = t.groq.CounselorTurn(ctx, history, userText)
	}
	if err != nil {
		span.RecordError(err)
		log.Error("[Telegram] All model providers failed for turn", zap.Error(err))
		t.send(ctx, chatID, troubled, nil)
		return
	}

	fields, err := extract.Extract(raw, leads.Names())
	if err != nil {
		// Absorbed: the turn contributes no field updates.
		log.Warn("[Telegram] No lead JSON in model output", zap.Error(err))
	} else {
		state.Merge(fields)
		span.SetAttributes(attribute.Int("fields.extracted", len(fields)))
	}

	answer := extract.Strip(raw)
	if answer == "" {
		answer = "Could you tell me a bit more about your plans?"
	}

	// Chips come from the model when it offered any, static defaults otherwise.
	chips := extract.Suggestions(raw)
	if len(chips) == 0 {
		chips = modelapi.FOLLOWUP_SUGGESTIONS
	}

	state.AddTurn(userText, answer)
	t.send(ctx, chatID, answer, chips)
}

// finalizeLead persists the chat's accumulated session through the router.
// The session is discarded only once the lead is durably stored somewhere;
// on total failure the state stays in place so the student can retry /done.
// Returns false when the session has nothing to persist.
func finalizeLead(ctx context.Context, sessions *session.Store, router *leadlog.Router, chatID int64) (leadlog.Result, bool) {
	tracer := otel.Tracer("telegram/finalizeLead")
	ctx, span := tracer.Start(ctx, "finalizeLead")
	defer span.End()

	state := sessions.Get(chatID)
	if !state.HasFields() {
		return 0, false
	}

	lead := state.Snapshot()
	result := router.Persist(ctx, lead)
	span.SetAttributes(
		attribute.String("lead.session_id", lead.SessionID),
		attribute.String("persist.result", result.String()),
	)

	if result != leadlog.TotalFailure {
		sessions.Reset(chatID)
	}
	return result, true
}

func (t *Telegram) registerUser(ctx context.Context, user *tgbotapi.User) {
	if t.db == nil {
		return
	}
	err := t.db.SetupNewUser(ctx, postgres.SetupNewUserProps{
		TelegramUserID:    user.ID,
		TelegramFirstName: user.FirstName,
		TelegramLastName:  user.LastName,
		TelegramUsername:  user.UserName,
	})
	if err != nil {
		t.logger.Logger(ctx).Warn("[Telegram] Could not register user", zap.Error(err))
	}
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string, suggestions []string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(suggestions) > 0 {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, s := range suggestions {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(s, s))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons)
	}

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Failed to send message", zap.Error(err))
	}
}
