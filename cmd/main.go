package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	debitcard "debitcard_back"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/chainclient"
	"debitcard_back/pkg/config"
	"debitcard_back/pkg/handler"
	"debitcard_back/pkg/notify"
	"debitcard_back/pkg/pricefeed"
	"debitcard_back/pkg/repository"
	"debitcard_back/pkg/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const notifyTimeout = 10 * time.Second

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	cfg, err := config.Load("configs")
	if err != nil {
		logrus.Fatalf("config: %s", err)
	}
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.Infof("starting %s", cfg.App.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, repository.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		Username: cfg.DB.Username,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		logrus.Fatalf("database: %s", err)
	}
	defer db.Close()
	if err := repository.ApplySchema(ctx, db); err != nil {
		logrus.Fatalf("database: %s", err)
	}
	logrus.Info("database connected")

	pending, rates := stores(ctx, cfg)

	chain, err := chainclient.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ID, cfg.Treasury, cfg.Chain.Decimals, cfg.Chain.PollInterval)
	if err != nil {
		logrus.Fatalf("chain rpc: %s", err)
	}

	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, notifyTimeout, sinks(cfg.Notify)...)
	dispatcher.Start()

	services, topUp, reconciler := service.NewService(ctx, cfg, service.Deps{
		Repos:     repository.NewRepository(db),
		Pending:   pending,
		Rates:     rates,
		Prices:    pricefeed.New(cfg.Price.APIURL, cfg.Price.APIKey, cfg.Price.TokenID, cfg.Chain.CurrencySymbol, cfg.Price.Timeout, cfg.Price.Fallback),
		Chain:     chain,
		Publisher: dispatcher,
	})

	scheduler, err := service.NewScheduler(ctx, services.Price, cfg.Price.RefreshInterval, reconciler, cfg.Reconcile.Schedule)
	if err != nil {
		logrus.Fatalf("scheduler: %s", err)
	}
	services.Price.Refresh(ctx)
	scheduler.Start()

	if !services.Session.Enabled() {
		logrus.Warn("auth.jwt_secret not set, trusting the X-Wallet-Address header; card details stay masked")
	}

	srv := new(debitcard.Server)
	go func() {
		if err := srv.Run(cfg.App.Port, handler.NewHandler(services, cfg.App.AllowOrigins).InitRoute()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http server: %s", err)
		}
	}()
	logrus.Infof("listening on :%s", cfg.App.Port)

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("http shutdown: %s", err)
	}
	<-scheduler.Stop().Done()
	topUp.Wait()
	dispatcher.Stop()
}

// stores picks Redis when configured so several instances share slots and rates.
func stores(ctx context.Context, cfg config.Config) (cache.PendingStore, cache.RateCache) {
	rateAge := 5 * cfg.Price.RefreshInterval
	if cfg.Redis.Addr == "" {
		logrus.Info("redis not configured, keeping top-up slots in memory")
		return cache.NewMemoryPendingStore(), cache.NewMemoryRateCache(rateAge)
	}

	rdb, err := cache.ConnectRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logrus.Fatalf("redis: %s", err)
	}
	logrus.Info("redis connected")
	return cache.NewRedisPendingStore(rdb), cache.NewRedisRateCache(rdb, rateAge)
}

func sinks(cfg config.NotifyConfig) []notify.Sink {
	var out []notify.Sink
	if cfg.WebhookEnabled() {
		out = append(out, notify.NewWebhookSink(cfg.WebhookURL, cfg.NotificationID))
	}
	if cfg.TelegramToken != "" && cfg.NotificationID != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logrus.Warnf("telegram sink disabled: %s", err)
		} else {
			out = append(out, notify.NewTelegramSink(bot, cfg.NotificationID))
		}
	}
	switch {
	case cfg.MailjetKey != "" && cfg.MailjetSecret != "" && cfg.MailTo != "":
		out = append(out, notify.NewMailjetSink(cfg.MailjetKey, cfg.MailjetSecret, cfg.MailFrom, cfg.MailTo))
	case cfg.SMTPHost != "" && cfg.MailTo != "":
		out = append(out, notify.NewSMTPSink(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.MailTo))
	}
	if len(out) == 0 {
		logrus.Warn("no notification sink configured")
	}
	return out
}
