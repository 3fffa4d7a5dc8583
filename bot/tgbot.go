// Package bot is the Telegram side of the VIP subscription service.
//
//   - tgbot.go     TgBot struct, lifecycle (Start/Stop), Core interface
//   - commands.go  user commands: /start, /status, /help
//   - admin.go     admin commands: /setvideo
//   - callbacks.go inline keyboards and callback handlers: unlock, buy:<PLAN>, paid_check
//   - members.go   chat_member updates of the VIP group
//   - menus.go     per-role command menus
//   - messaging.go core.Messenger implementation: invites, eviction, notifications
//   - digest.go    buffer of log alerts forwarded to admins
//   - helpers.go   Sanitize, plainResponse, sendWithKeyboard, reportError
//   - texts.go     user facing texts
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"vipbot/entity"
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
)

// Config holds the Telegram settings of the bot.
type Config struct {
	GroupId     int64
	GroupUrl    string
	PreviewsUrl string
	WelcomeText string
	AdminIds    []int64
	Location    *time.Location
	// QrCodeUrl builds the link of the QR page of a charge
	QrCodeUrl func(chargeId string) string
	// interval of the admin alert digest
	DigestInterval time.Duration
}

// Core is the part of the subscription lifecycle the bot drives.
type Core interface {
	SaveUser(ctx context.Context, user *entity.User) error
	Plans() []entity.Plan
	InitiateCharge(ctx context.Context, userId int64, planId string) (*entity.Charge, error)
	GetStatus(ctx context.Context, userId int64) (*entity.SubscriptionStatus, error)
	OnMemberJoined(ctx context.Context, userId int64) error
	WelcomeVideo(ctx context.Context) string
	SetWelcomeVideo(ctx context.Context, fileId string) error
}

type TgBot struct {
	log        *slog.Logger
	api        *tgbotapi.Bot
	core       Core
	updater    *ext.Updater
	dispatcher *ext.Dispatcher
	digest     *DigestBuffer
	conf       Config
	admins     map[int64]bool
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewTgBot(apiKey string, log *slog.Logger, conf Config) (*TgBot, error) {
	if conf.Location == nil {
		conf.Location = time.UTC
	}
	if conf.PreviewsUrl == "" {
		conf.PreviewsUrl = "https://t.me"
	}
	if conf.WelcomeText == "" {
		conf.WelcomeText = defaultWelcomeText
	}
	if conf.DigestInterval <= 0 {
		conf.DigestInterval = time.Minute
	}

	tgBot := &TgBot{
		log:    log.With(sl.Module("tgbot")),
		conf:   conf,
		admins: make(map[int64]bool, len(conf.AdminIds)),
		stopCh: make(chan struct{}),
	}
	for _, id := range conf.AdminIds {
		tgBot.admins[id] = true
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api
	tgBot.dispatcher = ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			tgBot.log.Error("handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	tgBot.updater = ext.NewUpdater(tgBot.dispatcher, nil)
	tgBot.digest = NewDigestBuffer(tgBot, conf.DigestInterval)
	tgBot.digest.StartTicker()

	return tgBot, nil
}

func (t *TgBot) SetCore(core Core) {
	t.core = core
}

// Start registers the handlers and polls for updates until Stop is called.
func (t *TgBot) Start() error {
	if t.core == nil {
		return fmt.Errorf("core not connected")
	}

	dispatcher := t.dispatcher
	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("status", t.status))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))
	dispatcher.AddHandler(handlers.NewCommand("setvideo", t.setVideo))

	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Equal(cbUnlock), t.onUnlock))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbBuy), t.onBuy))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Equal(cbPaidCheck), t.onPaidCheck))

	dispatcher.AddHandler(handlers.NewChatMember(t.vipGroupMember, t.onChatMember))

	t.setDefaultCommands()
	t.syncAdminMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout:        9,
			AllowedUpdates: []string{"message", "callback_query", "chat_member"},
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	t.log.Info("telegram bot started", slog.String("username", t.api.Username))

	<-t.stopCh
	t.updater.Stop()
	t.log.Info("telegram bot stopped")
	return nil
}

// Stop makes Start return; it is safe to call before Start and more than once.
func (t *TgBot) Stop() {
	t.stopOnce.Do(func() {
		t.log.Info("stopping telegram bot")
		close(t.stopCh)
	})
	if t.digest != nil {
		t.digest.Stop()
	}
}

func (t *TgBot) isAdmin(id int64) bool {
	return t.admins[id]
}

func (t *TgBot) adminIds() []int64 {
	return t.conf.AdminIds
}
