package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/thread-guard-bot/app/moderator"
	"nuclight.org/thread-guard-bot/app/storage"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

var opts struct {
	DBDriver        string `long:"db-driver" env:"DB_DRIVER" default:"sqlite3" choice:"sqlite3" choice:"sqlite" choice:"pgx" description:"database driver"`
	DBPath          string `long:"db-path" env:"DB_PATH" default:"data/bot.sqlite3" description:"sqlite database file or postgres url"`
	RedisURL        string `long:"redis-url" env:"REDIS_URL" description:"redis url, read warnings from redis if set"`
	WarningCooldown int    `long:"warning-cooldown" env:"WARNING_COOLDOWN" default:"180" description:"warning cooldown in seconds"`
	Format          string `short:"f" long:"format" default:"text" choice:"text" choice:"json" choice:"html" description:"output format"`
	Debug           bool   `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

func main() {
	_ = godotenv.Load()

	err := parseArgs(os.Args[1:])
	if err != nil {
		os.Exit(exitCode(err))
	}

	log := logger.NewLogger(opts.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store moderator.WarningStore
	if opts.RedisURL != "" {
		r, err := storage.NewRedis(ctx, opts.RedisURL)
		if err != nil {
			log.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = r.Close() }()
		store = r
	} else {
		db, err := storage.Open(ctx, opts.DBDriver, opts.DBPath)
		if err != nil {
			log.Error("opening database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		store = db
	}

	warner := &moderator.Warner{
		Log:       log,
		Cooldown:  time.Duration(opts.WarningCooldown) * time.Second,
		Cooldowns: &moderator.Cooldowns{Log: logger.Discard(), Store: store},
	}

	err = printStats(ctx, warner, opts.Format)
	if err != nil {
		log.Error("printing stats", "error", err)
		os.Exit(1)
	}
}

func printStats(ctx context.Context, warner *moderator.Warner, format string) error {
	if format == "html" {
		text, err := warner.FormatStats(ctx)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	statuses, err := warner.Snapshot(ctx)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tLAST WARNING\tELAPSED\tSTATUS")
	for _, s := range statuses {
		status := "available"
		if !s.Available() {
			status = fmt.Sprintf("cooldown %s", s.Remaining)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.UserID, s.LastWarning.Format(time.DateTime), s.Elapsed, status)
	}

	return w.Flush()
}

// parseArgs fills opts. Parse errors and help are printed by the parser.
func parseArgs(args []string) error {
	_, err := flags.NewParser(&opts, flags.Default).ParseArgs(args)
	return err
}

func exitCode(err error) int {
	if flags.WroteHelp(err) {
		return 0
	}
	return 1
}
