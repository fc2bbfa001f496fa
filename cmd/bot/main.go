package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"
	"nuclight.org/thread-guard-bot/app/config"
	"nuclight.org/thread-guard-bot/app/httpapi"
	"nuclight.org/thread-guard-bot/app/moderator"
	"nuclight.org/thread-guard-bot/app/notify"
	"nuclight.org/thread-guard-bot/app/scheduler"
	"nuclight.org/thread-guard-bot/app/services"
	"nuclight.org/thread-guard-bot/app/storage"
	"nuclight.org/thread-guard-bot/app/telegram"
	"nuclight.org/thread-guard-bot/app/thread"
	"nuclight.org/thread-guard-bot/pkg/cached"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

var Revision = "dev"

func main() {
	opts, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}

		logger.NewLogger(false).Error("loading config", "error", err)
		os.Exit(1)
	}

	os.Exit(run(opts))
}

func run(opts *config.Options) int {
	log := logger.NewLogger(opts.Debug)

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     opts.SentryDSN,
			Release: Revision,
		})
		if err != nil {
			log.Error("initializing sentry", "error", err)
			return 1
		}
		defer sentry.Flush(2 * time.Second)

		log = logger.NewSentryLogger(opts.Debug, sentry.CurrentHub())
	}

	log.Info("starting bot", "revision", Revision)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, opts)
	if err != nil {
		log.Error("opening warning store", "error", err)
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("closing warning store", "error", err)
		}
	}()

	history, err := thread.NewHistory(opts.HistorySize)
	if err != nil {
		log.Error("creating message history", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	bot := &telegram.Client{
		Log:            log,
		APIToken:       opts.TelegramAPIToken,
		WorkersNum:     opts.TelegramWorkersNum,
		GroupID:        opts.GroupID,
		RequestTimeout: opts.RequestTimeout,
		History:        history,
	}

	err = bot.Connect(gctx)
	if err != nil {
		log.Error("connecting to telegram", "error", err)
		return 1
	}

	classifier := &thread.Classifier{
		Log:       log,
		ChannelID: opts.ChannelID,
		MaxDepth:  opts.MaxChainDepth,
		Parents:   history,
	}

	warner := &moderator.Warner{
		Log:       log,
		Cooldown:  opts.Cooldown(),
		Template:  opts.Template(),
		Cooldowns: &moderator.Cooldowns{Log: log, Store: store},
		Sender:    bot,
	}

	deleter := &scheduler.Deleter{
		Log:     log,
		Remover: bot,
		Timeout: opts.RequestTimeout,
	}

	notifier := &notify.Notifier{
		Log:     log,
		Sender:  bot,
		AdminID: opts.AdminID,
	}

	admins := &cached.Value[[]int64]{
		Fetch: func(ctx context.Context) ([]int64, error) {
			return bot.ChatAdminIDs(ctx, opts.GroupID)
		},
		TTL: opts.AdminCacheTTL(),
	}

	bot.Handler = &services.Guard{
		Log:         log,
		Classifier:  classifier,
		Warner:      warner,
		Notifier:    notifier,
		Deleter:     deleter,
		Admins:      admins,
		DeleteDelay: opts.DeleteDelay(),
	}

	bot.Commands = &services.Commands{
		Log:         log,
		Sender:      bot,
		Chains:      classifier,
		Stats:       warner,
		AdminID:     opts.AdminID,
		GroupID:     opts.GroupID,
		ChannelID:   opts.ChannelID,
		DeleteDelay: opts.DeleteDelay(),
		Cooldown:    opts.Cooldown(),
	}

	if opts.HTTPAddr != "" {
		api := &httpapi.Server{
			Log:      log,
			Addr:     opts.HTTPAddr,
			Warnings: warner,
			Revision: Revision,
		}

		g.Go(func() error {
			return api.Run(gctx)
		})
	}

	err = notifier.Startup(gctx)
	if err != nil {
		log.Error("sending startup notification", "error", err)
	}

	err = bot.Start(gctx)
	if err != nil {
		log.Error("starting bot", "error", err)
		cancel()
		_ = g.Wait()
		return 1
	}

	<-gctx.Done()
	log.Info("stopping bot")

	bot.Wait()
	deleter.Stop()

	code := 0
	if err := g.Wait(); err != nil {
		log.Error("running http server", "error", err)
		code = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.RequestTimeout)
	defer shutdownCancel()

	err = notifier.Shutdown(shutdownCtx)
	if err != nil {
		log.Error("sending shutdown notification", "error", err)
	}

	log.Info("bot stopped")
	return code
}

func openStore(ctx context.Context, opts *config.Options) (moderator.WarningStore, func() error, error) {
	if opts.RedisURL != "" {
		r, err := storage.NewRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}

		return r, r.Close, nil
	}

	db, err := storage.Open(ctx, opts.DBDriver, opts.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s database: %w", opts.DBDriver, err)
	}

	return db, db.Close, nil
}
