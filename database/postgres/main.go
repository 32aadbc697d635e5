// Package postgres keeps the registry of Telegram users who have talked to
// the counselor. Lead persistence does not go through here; that is the
// lead log's job.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"counselordev/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS counselor_users (
	telegram_user_id    BIGINT PRIMARY KEY,
	telegram_username   TEXT,
	telegram_first_name TEXT,
	telegram_last_name  TEXT,
	first_seen          TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type DatabaseConnectProps struct {
	Logger *logger.LogMiddleware
}

type Database struct {
	conn   *sql.DB
	logger *logger.LogMiddleware
}

// Connect opens the user registry. When POSTGRES_DB_HOST is unset the
// service runs without one; a configured but unreachable database is fatal
// after the retries run out.
func Connect(ctx context.Context, args DatabaseConnectProps) *Database {
	tracer := otel.Tracer("postgres/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	log := args.Logger.Logger(ctx)

	if os.Getenv("POSTGRES_DB_HOST") == "" {
		log.Warn("[Postgres] POSTGRES_DB_HOST not set, running without user registry")
		return nil
	}

	connectRetries := 5
	var conn *sql.DB
	var err error

	for connectRetries > 0 {
		conn, err = getConnection(ctx)
		if err == nil {
			log.Info("[Postgres] Database client started")
			break
		}
		connectRetries -= 1
		sleepTime := 5
		log.Error(
			"[Postgres] Could not connect to Postgres. Retrying after sleeping.",
			zap.Error(err),
			zap.Int("Retries Left", connectRetries),
			zap.Int("Sleep Time", sleepTime))
		time.Sleep(time.Second * time.Duration(sleepTime))
	}

	if connectRetries <= 0 {
		log.Error("[Postgres] Failed to connect to Postgres")
		span.RecordError(fmt.Errorf("failed to connect to Postgres"))
		os.Exit(1)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		log.Error("[Postgres] Could not ensure schema", zap.Error(err))
		span.RecordError(err)
		os.Exit(1)
	}

	return &Database{conn: conn, logger: args.Logger}
}

func getConnection(ctx context.Context) (*sql.DB, error) {
	tracer := otel.Tracer("postgres/getConnection")
	_, span := tracer.Start(ctx, "getConnection")
	defer span.End()

	host := os.Getenv("POSTGRES_DB_HOST")
	port := os.Getenv("POSTGRES_DB_PORT")
	user := os.Getenv("POSTGRES_DB_USER")
	password := os.Getenv("POSTGRES_DB_PASS")
	dbname := os.Getenv("POSTGRES_DB_NAME")

	postgresqlDbInfo := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", postgresqlDbInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return db, nil
}

type SetupNewUserProps struct {
	TelegramUserID    int64
	TelegramFirstName string
	TelegramUsername  string
	TelegramLastName  string
}

// SetupNewUser records a Telegram user on first contact. Repeated contacts
// are no-ops.
func (d *Database) SetupNewUser(ctx context.Context, args SetupNewUserProps) error {
	tracer := otel.Tracer("postgres/SetupNewUser")
	ctx, span := tracer.Start(ctx, "SetupNewUser")
	defer span.End()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO counselor_users (telegram_user_id, telegram_username, telegram_first_name, telegram_last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_user_id) DO NOTHING`,
		args.TelegramUserID, args.TelegramUsername, args.TelegramFirstName, args.TelegramLastName,
	)
	if err != nil {
		d.logger.Logger(ctx).Error(
			"[Postgres] Could not setup new user",
			zap.Error(err),
			zap.Int64("telegram_user_id", args.TelegramUserID),
		)
		span.RecordError(err)
		return fmt.Errorf("could not setup new user")
	}

	return nil
}
