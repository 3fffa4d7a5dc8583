package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"
	"vipbot/bot"
	"vipbot/entity"
	"vipbot/impl/core"
	"vipbot/impl/expiry"
	"vipbot/internal/cache"
	"vipbot/internal/config"
	"vipbot/internal/database"
	"vipbot/internal/http-server/api"
	"vipbot/internal/pushinpay"
	"vipbot/lib/logger"
	"vipbot/lib/sl"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type store interface {
	core.Database
	Close()
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)
	lg.Info("starting vipbot", slog.String("config", *configPath), slog.String("env", conf.Env))

	// validated on load
	location, _ := time.LoadLocation(conf.Subscription.Location)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, lg, bot.Config{
		GroupId:     conf.Telegram.GroupId,
		GroupUrl:    conf.Telegram.GroupUrl,
		PreviewsUrl: conf.Telegram.PreviewsUrl,
		WelcomeText: conf.Telegram.WelcomeText,
		AdminIds:    conf.Telegram.AdminIds,
		Location:    location,
		QrCodeUrl:   qrCodeUrl(conf),
	})
	if err != nil {
		lg.Error("telegram bot", sl.Err(err))
		log.Fatal(err)
	}
	// the bot logs with the plain logger so its own send failures are not sent back to it
	if conf.Telegram.LogErrors {
		lg = slog.New(logger.NewTelegramHandler(lg.Handler(), tgBot, slog.LevelError))
		lg.Info("error records are forwarded to admins")
	}

	db, err := openStore(ctx, conf, lg)
	if err != nil {
		lg.Error("database", sl.Err(err))
		log.Fatal(err)
	}
	defer db.Close()

	gateway := pushinpay.NewClient(pushinpay.Config{
		Token:   conf.PushinPay.Token,
		ApiUrl:  conf.PushinPay.ApiUrl,
		Timeout: conf.GatewayTimeout(),
	}, lg)

	handler := core.New(core.Config{
		InviteTtl:  conf.InviteTtl(),
		WebhookUrl: conf.WebhookUrl(),
		Renewal:    entity.RenewalPolicy(conf.Subscription.Renewal),
	}, db, gateway, lg)

	if conf.Redis.Enabled {
		pixCache, err := cache.NewPixCache(ctx, cache.Config{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
			Prefix:   conf.Redis.Prefix,
			Ttl:      time.Duration(conf.Redis.TtlHours) * time.Hour,
		})
		if err != nil {
			lg.Warn("redis unavailable, pix codes are not cached", sl.Err(err))
		} else {
			defer pixCache.Close()
			handler.SetPixCache(pixCache)
		}
	}

	tgBot.SetCore(handler)
	handler.SetMessenger(tgBot)

	server := api.New(conf, lg, handler)
	watcher := expiry.NewWatcher(handler, conf.SweepInterval(), lg)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(tgBot.Start)
	group.Go(func() error {
		return watcher.Start(gctx)
	})
	group.Go(func() error {
		<-gctx.Done()
		tgBot.Stop()
		watcher.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		lg.Error("service stopped", sl.Err(err))
		return
	}
	lg.Info("service stopped")
}

func openStore(ctx context.Context, conf *config.Config, lg *slog.Logger) (store, error) {
	if conf.Database.Driver == "mongo" {
		return database.NewMongoClient(ctx, conf, lg)
	}
	return database.NewSQLStore(ctx, conf.Database.Driver, conf.Database.Dsn, lg)
}

// qrCodeUrl returns nil without a public base url; the bot then omits the
// QR button.
func qrCodeUrl(conf *config.Config) func(string) string {
	if conf.BaseUrl == "" {
		return nil
	}
	return conf.QrCodeUrl
}
