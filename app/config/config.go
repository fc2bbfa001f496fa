// Package config reads bot settings from command line flags, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/thread-guard-bot/app/moderator"
	"nuclight.org/thread-guard-bot/app/storage"
)

type Options struct {
	TelegramAPIToken   string        `long:"telegram-api-token" env:"BOT_TOKEN" required:"true" description:"telegram api token"`
	TelegramWorkersNum int           `long:"telegram-workers-num" env:"TELEGRAM_WORKERS_NUM" default:"5" description:"number of workers for telegram bot"`
	RequestTimeout     time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"10s" description:"timeout of a single telegram request"`

	AdminID   int64 `long:"admin-id" env:"ADMIN_ID" required:"true" description:"telegram id of the bot administrator"`
	GroupID   int64 `long:"group-id" env:"GROUP_ID" required:"true" description:"id of the moderated discussion group"`
	ChannelID int64 `long:"channel-id" env:"CHANNEL_ID" required:"true" description:"id of the linked broadcast channel"`

	AutoDeleteDelay      int    `long:"auto-delete-delay" env:"AUTO_DELETE_DELAY" default:"10" description:"seconds before off-topic messages are deleted"`
	WarningCooldown      int    `long:"warning-cooldown" env:"WARNING_COOLDOWN" default:"180" description:"minimal seconds between two warnings to the same user"`
	AdminCacheTTLMinutes int    `long:"admin-cache-ttl" env:"ADMIN_CACHE_TTL_MINUTES" default:"600" description:"minutes the group admin list is cached"`
	MaxChainDepth        int    `long:"max-chain-depth" env:"MAX_CHAIN_DEPTH" default:"20" description:"number of reply ancestors inspected"`
	HistorySize          int    `long:"history-size" env:"HISTORY_SIZE" default:"10000" description:"number of recent group messages remembered for reply chains"`
	WarningMessage       string `long:"warning-message" env:"WARNING_MESSAGE" description:"warning template, \\n is a newline, placeholders {username} {full_name} {chat_id} {message_id}"`

	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite3" choice:"sqlite3" choice:"sqlite" choice:"pgx" description:"database driver"`
	DBPath   string `long:"db-path" env:"DB_PATH" default:"data/bot.sqlite3" description:"sqlite database file or postgres url"`
	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"redis url, when set warnings are kept in redis instead of the database"`

	HTTPAddr  string `long:"http-addr" env:"HTTP_ADDR" description:"address of the status http server, disabled if empty"`
	SentryDSN string `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn, error reporting is disabled if empty"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

// ConfigError describes an invalid or missing setting.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Option, e.Reason)
}

// Load reads .env from the working directory (real environment variables take
// precedence), parses args and validates the result. ErrHelp is returned as is
// when help was requested.
func Load(args []string) (*Options, error) {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)

	_, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}

		return nil, &ConfigError{Option: "arguments", Reason: err.Error()}
	}

	err = opts.Validate()
	if err != nil {
		return nil, err
	}

	return &opts, nil
}

func (o *Options) Validate() error {
	switch {
	case strings.TrimSpace(o.TelegramAPIToken) == "":
		return &ConfigError{Option: "BOT_TOKEN", Reason: "must not be empty"}
	case o.AdminID == 0:
		return &ConfigError{Option: "ADMIN_ID", Reason: "must not be zero"}
	case o.GroupID == 0:
		return &ConfigError{Option: "GROUP_ID", Reason: "must not be zero"}
	case o.ChannelID == 0:
		return &ConfigError{Option: "CHANNEL_ID", Reason: "must not be zero"}
	case o.AutoDeleteDelay < 0:
		return &ConfigError{Option: "AUTO_DELETE_DELAY", Reason: "must not be negative"}
	case o.WarningCooldown < 0:
		return &ConfigError{Option: "WARNING_COOLDOWN", Reason: "must not be negative"}
	case o.AdminCacheTTLMinutes <= 0:
		return &ConfigError{Option: "ADMIN_CACHE_TTL_MINUTES", Reason: "must be positive"}
	case o.MaxChainDepth <= 0:
		return &ConfigError{Option: "MAX_CHAIN_DEPTH", Reason: "must be positive"}
	case o.HistorySize <= 0:
		return &ConfigError{Option: "HISTORY_SIZE", Reason: "must be positive"}
	case o.TelegramWorkersNum <= 0:
		return &ConfigError{Option: "TELEGRAM_WORKERS_NUM", Reason: "must be positive"}
	case o.RequestTimeout <= 0:
		return &ConfigError{Option: "REQUEST_TIMEOUT", Reason: "must be positive"}
	case o.RedisURL == "" && o.DBPath == "":
		return &ConfigError{Option: "DB_PATH", Reason: "must not be empty"}
	case o.DBDriver != storage.DriverSQLite3 && o.DBDriver != storage.DriverSQLite && o.DBDriver != storage.DriverPostgres:
		return &ConfigError{Option: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q", o.DBDriver)}
	}

	return nil
}

func (o *Options) DeleteDelay() time.Duration {
	return time.Duration(o.AutoDeleteDelay) * time.Second
}

func (o *Options) Cooldown() time.Duration {
	return time.Duration(o.WarningCooldown) * time.Second
}

func (o *Options) AdminCacheTTL() time.Duration {
	return time.Duration(o.AdminCacheTTLMinutes) * time.Minute
}

// Template returns the warning template with escaped newlines expanded.
func (o *Options) Template() string {
	if o.WarningMessage == "" {
		return moderator.DefaultTemplate
	}

	return strings.ReplaceAll(o.WarningMessage, `\n`, "\n")
}
