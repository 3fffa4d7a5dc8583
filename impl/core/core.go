package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"vipbot/entity"
	"vipbot/lib/clock"
	"vipbot/lib/sl"

	"github.com/google/uuid"
)

type Database interface {
	SaveUser(ctx context.Context, user *entity.User) error
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	CreatePayment(ctx context.Context, p *entity.PaymentAttempt) error
	GetPaymentByCharge(ctx context.Context, chargeId string) (*entity.PaymentAttempt, error)
	ActivatePayment(ctx context.Context, a entity.Activation) (*entity.Subscription, bool, error)
	GetSubscription(ctx context.Context, userId int64) (*entity.Subscription, error)
	ExpiredSubscriptions(ctx context.Context, now time.Time) ([]*entity.Subscription, error)
	DeactivateSubscription(ctx context.Context, userId int64, now time.Time) (bool, error)
	SaveInviteLink(ctx context.Context, link *entity.InviteLink) error
	ActiveInviteLinks(ctx context.Context, userId int64) ([]*entity.InviteLink, error)
	RevokeInviteLink(ctx context.Context, link string) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type Gateway interface {
	CreateCharge(ctx context.Context, amount int64, webhookURL string) (*entity.Charge, error)
	FetchPixCode(ctx context.Context, chargeId string) (string, error)
}

// Messenger is the messaging platform. Apart from CreateInviteLink every
// call is best-effort: failures are logged by the implementation.
type Messenger interface {
	CreateInviteLink(expiresAt time.Time) (string, error)
	RevokeInviteLink(link string)
	EvictMember(userId int64)
	NotifyPaymentApproved(userId int64, inviteLink string)
	NotifySubscriptionExpired(userId int64)
	NotifyAdminsPayment(summary *entity.PaymentSummary)
}

type PixCache interface {
	GetPix(ctx context.Context, chargeId string) (string, error)
	PutPix(ctx context.Context, chargeId, code string) error
}

type Config struct {
	InviteTtl  time.Duration
	WebhookUrl string
	Renewal    entity.RenewalPolicy
}

// Core runs the subscription lifecycle: charges, confirmations, invites and expiry.
type Core struct {
	conf  Config
	db    Database
	gw    Gateway
	msg   Messenger
	cache PixCache
	clock clock.Clock
	log   *slog.Logger
}

func New(conf Config, db Database, gw Gateway, log *slog.Logger) *Core {
	if db == nil {
		panic("database is nil")
	}
	if gw == nil {
		panic("payment gateway is nil")
	}
	if conf.InviteTtl <= 0 {
		conf.InviteTtl = time.Hour
	}
	if conf.Renewal == "" {
		conf.Renewal = entity.RenewalReset
	}
	return &Core{
		conf:  conf,
		db:    db,
		gw:    gw,
		msg:   nopMessenger{},
		clock: clock.System{},
		log:   log.With(sl.Module("core")),
	}
}

func (c *Core) SetMessenger(m Messenger) {
	c.msg = m
}

func (c *Core) SetPixCache(cache PixCache) {
	c.cache = cache
}

func (c *Core) SetClock(clk clock.Clock) {
	c.clock = clk
}

// now is truncated to whole seconds, the resolution of stored timestamps
func (c *Core) now() time.Time {
	return c.clock.Now().UTC().Truncate(time.Second)
}

func (c *Core) Plans() []entity.Plan {
	return entity.Plans()
}

// InitiateCharge creates a PIX charge for the plan and records the attempt.
// Nothing is stored when the provider fails.
func (c *Core) InitiateCharge(ctx context.Context, userId int64, planId string) (*entity.Charge, error) {
	plan, ok := entity.FindPlan(planId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownPlan, planId)
	}
	log := c.log.With(sl.User(userId), slog.String("plan", plan.Id))

	charge, err := c.gw.CreateCharge(ctx, plan.Amount, c.conf.WebhookUrl)
	if err != nil {
		log.Error("create charge", sl.Err(err))
		var ge *entity.GatewayError
		if !errors.As(err, &ge) {
			err = &entity.GatewayError{Op: "create charge", Err: err}
		}
		return nil, err
	}

	attempt := &entity.PaymentAttempt{
		Id:        uuid.NewString(),
		UserId:    userId,
		PlanId:    plan.Id,
		Amount:    plan.Amount,
		ChargeId:  charge.Id,
		Status:    entity.PaymentCreated,
		CreatedAt: c.now(),
	}
	if err = c.db.CreatePayment(ctx, attempt); err != nil {
		log.Error("save payment", sl.Charge(charge.Id), sl.Err(err))
		return nil, fmt.Errorf("save payment: %w", err)
	}

	if c.cache != nil {
		if err = c.cache.PutPix(ctx, charge.Id, charge.QrCode); err != nil {
			log.Warn("cache pix code", sl.Err(err))
		}
	}
	log.Info("charge initiated", sl.Charge(charge.Id))
	return charge, nil
}

// ConfirmPayment applies a provider notification. A charge is granted at most
// once; repeated notifications report ConfirmDuplicate and have no effects.
func (c *Core) ConfirmPayment(ctx context.Context, n *entity.PaymentNotification) (entity.ConfirmResult, error) {
	if n == nil || n.Id == "" || !n.IsPaid() {
		return entity.ConfirmIgnored, nil
	}
	log := c.log.With(sl.Charge(n.Id))

	payment, err := c.db.GetPaymentByCharge(ctx, n.Id)
	if err != nil {
		return "", fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		log.Warn("notification for unknown charge")
		return entity.ConfirmNotFound, nil
	}
	if payment.IsPaid() {
		log.Debug("charge already paid")
		return entity.ConfirmDuplicate, nil
	}
	log = log.With(sl.User(payment.UserId))

	plan, ok := entity.FindPlan(payment.PlanId)
	if !ok {
		return "", fmt.Errorf("payment %s: %w: %s", payment.Id, entity.ErrUnknownPlan, payment.PlanId)
	}
	if amount := n.Amount(); amount != 0 && amount != payment.Amount {
		log.Warn("paid amount differs from plan",
			slog.Int64("expected", payment.Amount),
			slog.Int64("paid", amount))
	}

	now := c.now()
	sub, activated, err := c.db.ActivatePayment(ctx, entity.Activation{
		ChargeId: payment.ChargeId,
		UserId:   payment.UserId,
		PlanId:   plan.Id,
		Now:      now,
		Duration: plan.Duration(),
		Policy:   c.conf.Renewal,
	})
	if err != nil {
		return "", fmt.Errorf("activate payment: %w", err)
	}
	if !activated {
		log.Debug("charge confirmed concurrently")
		return entity.ConfirmDuplicate, nil
	}
	log.Info("subscription activated",
		slog.String("plan", plan.Id),
		slog.Time("ends_at", sub.EndsAt))

	invite := c.issueInvite(ctx, payment.UserId, now)
	c.msg.NotifyPaymentApproved(payment.UserId, invite)

	summary := &entity.PaymentSummary{
		UserId:    payment.UserId,
		PayerName: n.PayerName,
		Amount:    payment.Amount,
		Plan:      plan,
		EndsAt:    sub.EndsAt,
		Invite:    invite != "",
	}
	user, err := c.db.GetUser(ctx, payment.UserId)
	if err != nil {
		log.Warn("get user", sl.Err(err))
	}
	summary.Handle = user.Handle()
	log.Info("payment approved", slog.String("user", user.DisplayName()))
	c.msg.NotifyAdminsPayment(summary)

	return entity.ConfirmOk, nil
}

// issueInvite revokes what is left of earlier invites and creates a fresh
// single-use link; an empty string means no link could be issued.
func (c *Core) issueInvite(ctx context.Context, userId int64, now time.Time) string {
	log := c.log.With(sl.User(userId))
	if err := c.revokeInvites(ctx, userId); err != nil {
		log.Warn("revoke previous invites", sl.Err(err))
	}

	expiresAt := now.Add(c.conf.InviteTtl)
	link, err := c.msg.CreateInviteLink(expiresAt)
	if err != nil {
		log.Error("create invite link", sl.Err(err))
		return ""
	}
	err = c.db.SaveInviteLink(ctx, &entity.InviteLink{
		Link:      link,
		UserId:    userId,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		log.Error("save invite link", sl.Err(err))
	}
	return link
}

func (c *Core) revokeInvites(ctx context.Context, userId int64) error {
	links, err := c.db.ActiveInviteLinks(ctx, userId)
	if err != nil {
		return fmt.Errorf("invite links: %w", err)
	}
	var errs []error
	for _, l := range links {
		c.msg.RevokeInviteLink(l.Link)
		if err = c.db.RevokeInviteLink(ctx, l.Link); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnMemberJoined revokes every outstanding invite of a user who entered the
// group, so a link cannot be reused or shared. Safe to call repeatedly.
func (c *Core) OnMemberJoined(ctx context.Context, userId int64) error {
	if err := c.revokeInvites(ctx, userId); err != nil {
		c.log.Error("revoke invites on join", sl.User(userId), sl.Err(err))
		return err
	}
	return nil
}

// SweepExpired evicts users whose subscription ended and deactivates it.
// A failure on one row is logged and the sweep goes on.
func (c *Core) SweepExpired(ctx context.Context) ([]int64, error) {
	now := c.now()
	subs, err := c.db.ExpiredSubscriptions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("expired subscriptions: %w", err)
	}

	var evicted []int64
	for _, sub := range subs {
		if ctx.Err() != nil {
			return evicted, ctx.Err()
		}
		log := c.log.With(sl.User(sub.UserId))

		// a payment may have renewed the subscription since the query
		current, err := c.db.GetSubscription(ctx, sub.UserId)
		if err != nil {
			log.Error("read subscription", sl.Err(err))
			continue
		}
		if current == nil || !current.Active || !current.EndsAt.Before(now) {
			continue
		}

		c.msg.EvictMember(sub.UserId)
		deactivated, err := c.db.DeactivateSubscription(ctx, sub.UserId, now)
		if err != nil {
			log.Error("deactivate subscription", sl.Err(err))
			continue
		}
		if !deactivated {
			continue
		}
		c.msg.NotifySubscriptionExpired(sub.UserId)
		log.Info("subscription expired",
			slog.String("plan", sub.PlanId),
			slog.Time("ended_at", sub.EndsAt))
		evicted = append(evicted, sub.UserId)
	}
	return evicted, nil
}

func (c *Core) GetStatus(ctx context.Context, userId int64) (*entity.SubscriptionStatus, error) {
	sub, err := c.db.GetSubscription(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return &entity.SubscriptionStatus{}, nil
	}
	return &entity.SubscriptionStatus{
		Active: sub.Active,
		PlanId: sub.PlanId,
		EndsAt: sub.EndsAt,
	}, nil
}

func (c *Core) SaveUser(ctx context.Context, user *entity.User) error {
	if user == nil || user.Id == 0 {
		return fmt.Errorf("invalid user")
	}
	return c.db.SaveUser(ctx, user)
}

// WelcomeVideo returns the file id shown on /start, or an empty string.
func (c *Core) WelcomeVideo(ctx context.Context) string {
	id, err := c.db.GetSetting(ctx, entity.SettingWelcomeVideo)
	if err != nil {
		c.log.Warn("welcome video", sl.Err(err))
		return ""
	}
	return id
}

func (c *Core) SetWelcomeVideo(ctx context.Context, fileId string) error {
	if fileId == "" {
		return fmt.Errorf("empty file id")
	}
	return c.db.SetSetting(ctx, entity.SettingWelcomeVideo, fileId)
}

// PixCode returns the copy-paste code of a charge for the QR page.
func (c *Core) PixCode(ctx context.Context, chargeId string) (string, error) {
	if c.cache != nil {
		code, err := c.cache.GetPix(ctx, chargeId)
		if err != nil {
			c.log.Warn("pix cache", sl.Charge(chargeId), sl.Err(err))
		}
		if code != "" {
			return code, nil
		}
	}
	code, err := c.gw.FetchPixCode(ctx, chargeId)
	if err != nil {
		return "", err
	}
	if c.cache != nil && code != "" {
		if err = c.cache.PutPix(ctx, chargeId, code); err != nil {
			c.log.Warn("cache pix code", sl.Charge(chargeId), sl.Err(err))
		}
	}
	return code, nil
}

type nopMessenger struct{}

func (nopMessenger) CreateInviteLink(time.Time) (string, error) {
	return "", errors.New("messenger not connected")
}

func (nopMessenger) RevokeInviteLink(string) {}

func (nopMessenger) EvictMember(int64) {}

func (nopMessenger) NotifyPaymentApproved(int64, string) {}

func (nopMessenger) NotifySubscriptionExpired(int64) {}

func (nopMessenger) NotifyAdminsPayment(*entity.PaymentSummary) {}
