package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"vipbot/entity"
	"vipbot/internal/database"
	"vipbot/lib/clock"
)

type fakeGateway struct {
	mu      sync.Mutex
	n       int
	fail    error
	amounts []int64
}

func (g *fakeGateway) CreateCharge(_ context.Context, amount int64, _ string) (*entity.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	g.n++
	g.amounts = append(g.amounts, amount)
	id := fmt.Sprintf("charge-%d", g.n)
	return &entity.Charge{Id: id, QrCode: "pix-" + id, Value: amount}, nil
}

func (g *fakeGateway) FetchPixCode(_ context.Context, chargeId string) (string, error) {
	return "pix-" + chargeId, nil
}

type fakeMessenger struct {
	mu         sync.Mutex
	n          int
	failInvite bool
	created    []string
	revoked    []string
	evicted    []int64
	approved   map[int64][]string
	expired    []int64
	summaries  []*entity.PaymentSummary
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{approved: make(map[int64][]string)}
}

func (m *fakeMessenger) CreateInviteLink(time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInvite {
		return "", errors.New("not enough rights")
	}
	m.n++
	link := fmt.Sprintf("https://t.me/+invite%d", m.n)
	m.created = append(m.created, link)
	return link, nil
}

func (m *fakeMessenger) RevokeInviteLink(link string) {
	m.mu.Lock()
	m.revoked = append(m.revoked, link)
	m.mu.Unlock()
}

func (m *fakeMessenger) EvictMember(userId int64) {
	m.mu.Lock()
	m.evicted = append(m.evicted, userId)
	m.mu.Unlock()
}

func (m *fakeMessenger) NotifyPaymentApproved(userId int64, inviteLink string) {
	m.mu.Lock()
	m.approved[userId] = append(m.approved[userId], inviteLink)
	m.mu.Unlock()
}

func (m *fakeMessenger) NotifySubscriptionExpired(userId int64) {
	m.mu.Lock()
	m.expired = append(m.expired, userId)
	m.mu.Unlock()
}

func (m *fakeMessenger) NotifyAdminsPayment(summary *entity.PaymentSummary) {
	m.mu.Lock()
	m.summaries = append(m.summaries, summary)
	m.mu.Unlock()
}

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	core  *Core
	db    *database.SQLStore
	gw    *fakeGateway
	msg   *fakeMessenger
	clock *clock.Manual
}

func newFixture(t *testing.T, policy entity.RenewalPolicy) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.NewSQLStore(ctx, "sqlite3", filepath.Join(t.TempDir(), "core.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(db.Close)

	f := &fixture{
		db:    db,
		gw:    &fakeGateway{},
		msg:   newFakeMessenger(),
		clock: clock.NewManual(t0),
	}
	f.core = New(Config{InviteTtl: time.Hour, WebhookUrl: "https://bot.example/pushin/webhook", Renewal: policy}, db, f.gw, log)
	f.core.SetMessenger(f.msg)
	f.core.SetClock(f.clock)
	return f
}

func paid(chargeId string) *entity.PaymentNotification {
	return &entity.PaymentNotification{Id: chargeId, Status: "paid", PayerName: "Fulano"}
}

func (f *fixture) buy(t *testing.T, userId int64, plan string) *entity.Charge {
	t.Helper()
	charge, err := f.core.InitiateCharge(context.Background(), userId, plan)
	if err != nil {
		t.Fatalf("InitiateCharge: %v", err)
	}
	return charge
}

func (f *fixture) confirm(t *testing.T, chargeId string) entity.ConfirmResult {
	t.Helper()
	res, err := f.core.ConfirmPayment(context.Background(), paid(chargeId))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	return res
}

func TestWeeklyPurchaseAndExpiry(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()
	_ = f.core.SaveUser(ctx, &entity.User{Id: 42, Username: "alice"})

	charge := f.buy(t, 42, entity.PlanWeek)
	if f.gw.amounts[0] != 1799 {
		t.Fatalf("charged %d", f.gw.amounts[0])
	}
	p, _ := f.db.GetPaymentByCharge(ctx, charge.Id)
	if p == nil || p.Status != entity.PaymentCreated || p.UserId != 42 {
		t.Fatalf("payment not recorded: %+v", p)
	}

	if res := f.confirm(t, charge.Id); res != entity.ConfirmOk {
		t.Fatalf("result = %s", res)
	}
	sub, _ := f.db.GetSubscription(ctx, 42)
	if sub == nil || !sub.Active || !sub.EndsAt.Equal(t0.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if len(f.msg.approved[42]) != 1 || f.msg.approved[42][0] == "" {
		t.Fatalf("user not notified with invite: %v", f.msg.approved)
	}
	if len(f.msg.summaries) != 1 || f.msg.summaries[0].Handle != "@alice" || f.msg.summaries[0].Amount != 1799 {
		t.Fatalf("unexpected admin summary %+v", f.msg.summaries)
	}

	status, _ := f.core.GetStatus(ctx, 42)
	if !status.Active || status.PlanId != entity.PlanWeek {
		t.Fatalf("status = %+v", status)
	}

	// still valid at the last second
	f.clock.Set(t0.Add(7*24*time.Hour - time.Second))
	if ids, _ := f.core.SweepExpired(ctx); len(ids) != 0 {
		t.Fatalf("evicted too early: %v", ids)
	}

	// the sweep takes rows with end < now, so the end second itself is kept
	f.clock.Set(t0.Add(7 * 24 * time.Hour))
	if ids, _ := f.core.SweepExpired(ctx); len(ids) != 0 || len(f.msg.evicted) != 0 {
		t.Fatalf("evicted at the end second: %v", ids)
	}

	f.clock.Set(t0.Add(604801 * time.Second))
	ids, err := f.core.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("evicted = %v", ids)
	}
	if len(f.msg.evicted) != 1 || len(f.msg.expired) != 1 {
		t.Fatalf("evict/notify calls: %v %v", f.msg.evicted, f.msg.expired)
	}
	status, _ = f.core.GetStatus(ctx, 42)
	if status.Active {
		t.Fatal("subscription still active after sweep")
	}

	// a second sweep finds nothing
	if ids, _ = f.core.SweepExpired(ctx); len(ids) != 0 {
		t.Fatalf("second sweep evicted %v", ids)
	}
}

func TestDuplicateNotification(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	charge := f.buy(t, 7, entity.PlanMonth)

	if res := f.confirm(t, charge.Id); res != entity.ConfirmOk {
		t.Fatalf("first = %s", res)
	}
	if res := f.confirm(t, charge.Id); res != entity.ConfirmDuplicate {
		t.Fatalf("second = %s", res)
	}
	if len(f.msg.created) != 1 || len(f.msg.summaries) != 1 || len(f.msg.approved[7]) != 1 {
		t.Fatalf("side effects repeated: invites=%d summaries=%d", len(f.msg.created), len(f.msg.summaries))
	}
}

func TestConcurrentNotifications(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	charge := f.buy(t, 8, entity.PlanWeek)

	var wg sync.WaitGroup
	results := make(chan entity.ConfirmResult, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.core.ConfirmPayment(context.Background(), paid(charge.Id))
			if err != nil {
				t.Errorf("ConfirmPayment: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	confirmed := 0
	for res := range results {
		if res == entity.ConfirmOk {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Fatalf("confirmed %d times", confirmed)
	}
	if len(f.msg.created) != 1 {
		t.Fatalf("invites created: %d", len(f.msg.created))
	}
}

func TestConfirmIgnoredAndNotFound(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()
	charge := f.buy(t, 9, entity.PlanWeek)

	tests := []struct {
		name string
		n    *entity.PaymentNotification
		want entity.ConfirmResult
	}{
		{"created status", &entity.PaymentNotification{Id: charge.Id, Status: "created"}, entity.ConfirmIgnored},
		{"missing id", &entity.PaymentNotification{Status: "paid"}, entity.ConfirmIgnored},
		{"unknown charge", paid("nope"), entity.ConfirmNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.core.ConfirmPayment(ctx, tt.n)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if res != tt.want {
				t.Errorf("got %s, want %s", res, tt.want)
			}
		})
	}
	if len(f.msg.created) != 0 {
		t.Fatal("invite created for an unconfirmed payment")
	}
	status, _ := f.core.GetStatus(ctx, 9)
	if status.Active {
		t.Fatal("pending payment must not grant access")
	}
}

func TestInitiateChargeErrors(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()

	if _, err := f.core.InitiateCharge(ctx, 1, "YEAR"); !errors.Is(err, entity.ErrUnknownPlan) {
		t.Fatalf("unknown plan: %v", err)
	}

	f.gw.fail = &entity.GatewayError{Op: "create charge", Status: 500, Err: errors.New("boom")}
	_, err := f.core.InitiateCharge(ctx, 1, entity.PlanWeek)
	var ge *entity.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	f.gw.fail = errors.New("dial tcp: timeout")
	_, err = f.core.InitiateCharge(ctx, 1, entity.PlanWeek)
	if !errors.As(err, &ge) {
		t.Fatalf("plain errors must be wrapped, got %v", err)
	}
}

func TestMemberJoinedRevokesInvites(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()
	charge := f.buy(t, 11, entity.PlanWeek)
	f.confirm(t, charge.Id)

	if err := f.core.OnMemberJoined(ctx, 11); err != nil {
		t.Fatalf("OnMemberJoined: %v", err)
	}
	if len(f.msg.revoked) != 1 || f.msg.revoked[0] != f.msg.created[0] {
		t.Fatalf("revoked = %v", f.msg.revoked)
	}
	links, _ := f.db.ActiveInviteLinks(ctx, 11)
	if len(links) != 0 {
		t.Fatalf("links still active: %d", len(links))
	}

	if err := f.core.OnMemberJoined(ctx, 11); err != nil {
		t.Fatalf("second OnMemberJoined: %v", err)
	}
	if len(f.msg.revoked) != 1 {
		t.Fatal("revocation repeated")
	}
}

func TestRenewalKeepsSingleSubscription(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()

	first := f.buy(t, 12, entity.PlanWeek)
	f.confirm(t, first.Id)

	f.clock.Advance(2 * 24 * time.Hour)
	second := f.buy(t, 12, entity.PlanMonth)
	f.confirm(t, second.Id)

	sub, _ := f.db.GetSubscription(ctx, 12)
	want := t0.Add(2 * 24 * time.Hour).Add(30 * 24 * time.Hour)
	if sub.PlanId != entity.PlanMonth || !sub.EndsAt.Equal(want) {
		t.Fatalf("subscription = %+v, want end %v", sub, want)
	}
	// the first invite was revoked when the second was issued
	if len(f.msg.revoked) != 1 || f.msg.revoked[0] != f.msg.created[0] {
		t.Fatalf("revoked = %v", f.msg.revoked)
	}
	links, _ := f.db.ActiveInviteLinks(ctx, 12)
	if len(links) != 1 || links[0].Link != f.msg.created[1] {
		t.Fatalf("active links = %v", links)
	}
}

func TestRenewalExtend(t *testing.T) {
	f := newFixture(t, entity.RenewalExtend)
	ctx := context.Background()

	first := f.buy(t, 13, entity.PlanWeek)
	f.confirm(t, first.Id)
	f.clock.Advance(24 * time.Hour)
	second := f.buy(t, 13, entity.PlanWeek)
	f.confirm(t, second.Id)

	sub, _ := f.db.GetSubscription(ctx, 13)
	if want := t0.Add(14 * 24 * time.Hour); !sub.EndsAt.Equal(want) {
		t.Fatalf("ends at %v, want %v", sub.EndsAt, want)
	}
}

func TestLifetimePlan(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()
	charge := f.buy(t, 14, entity.PlanLife)
	f.confirm(t, charge.Id)

	f.clock.Advance(10 * 365 * 24 * time.Hour)
	if ids, _ := f.core.SweepExpired(ctx); len(ids) != 0 {
		t.Fatalf("lifetime subscription evicted: %v", ids)
	}
}

func TestInviteFailureStillConfirms(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	f.msg.failInvite = true
	charge := f.buy(t, 15, entity.PlanWeek)

	if res := f.confirm(t, charge.Id); res != entity.ConfirmOk {
		t.Fatalf("result = %s", res)
	}
	if got := f.msg.approved[15]; len(got) != 1 || got[0] != "" {
		t.Fatalf("user notification = %v", got)
	}
	if len(f.msg.summaries) != 1 || f.msg.summaries[0].Invite {
		t.Fatalf("summary = %+v", f.msg.summaries)
	}
	status, _ := f.core.GetStatus(context.Background(), 15)
	if !status.Active {
		t.Fatal("payment must activate without an invite")
	}
}

func TestStatusUnknownUser(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	status, err := f.core.GetStatus(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Active || !status.EndsAt.IsZero() {
		t.Fatalf("status = %+v", status)
	}
}

func TestWelcomeVideo(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	ctx := context.Background()
	if v := f.core.WelcomeVideo(ctx); v != "" {
		t.Fatalf("video = %q", v)
	}
	if err := f.core.SetWelcomeVideo(ctx, "BAACAgQ"); err != nil {
		t.Fatalf("SetWelcomeVideo: %v", err)
	}
	if err := f.core.SetWelcomeVideo(ctx, "BAACAgZ"); err != nil {
		t.Fatalf("SetWelcomeVideo: %v", err)
	}
	if v := f.core.WelcomeVideo(ctx); v != "BAACAgZ" {
		t.Fatalf("video = %q", v)
	}
}

type mapCache map[string]string

func (m mapCache) GetPix(_ context.Context, id string) (string, error) { return m[id], nil }

func (m mapCache) PutPix(_ context.Context, id, code string) error {
	m[id] = code
	return nil
}

func TestPixCode(t *testing.T) {
	f := newFixture(t, entity.RenewalReset)
	cache := mapCache{}
	f.core.SetPixCache(cache)
	ctx := context.Background()

	charge := f.buy(t, 16, entity.PlanWeek)
	if cache[charge.Id] != charge.QrCode {
		t.Fatalf("code not cached: %v", cache)
	}
	code, err := f.core.PixCode(ctx, "other")
	if err != nil || code != "pix-other" {
		t.Fatalf("PixCode = %q, %v", code, err)
	}
	if cache["other"] != "pix-other" {
		t.Fatal("fetched code not cached")
	}
}
