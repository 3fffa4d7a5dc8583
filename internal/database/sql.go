package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"vipbot/entity"
	"vipbot/lib/sl"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

var (
	userColumns         = []string{"user_id", "username", "first_name", "last_name"}
	subscriptionColumns = []string{"user_id", "plan_id", "start_ts", "end_ts", "active"}
	inviteColumns       = []string{"link", "user_id", "created_ts", "expires_ts", "revoked"}
	settingColumns      = []string{"name", "value"}
)

// SQLStore keeps users, payments, subscriptions, invite links and settings
// in one of the supported SQL engines.
type SQLStore struct {
	db         *sql.DB
	d          dialect
	log        *slog.Logger
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

// NewSQLStore opens the database, runs the migrations and returns the store.
// For sqlite3 the dsn may be a plain file path.
func NewSQLStore(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite3" {
		dsn = sqliteDsn(dsn)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}
	if d.name == "sqlite3" {
		// a single writer; queued callers wait instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{
		db:         db,
		d:          d,
		log:        logger.With(sl.Module("database"), slog.String("driver", d.name)),
		statements: make(map[string]*sql.Stmt),
	}
	if err = migrate(ctx, db, d, s.log); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info("sql store ready")
	return s, nil
}

func sqliteDsn(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
}

func (s *SQLStore) Close() {
	s.mu.Lock()
	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
	s.mu.Unlock()
	_ = s.db.Close()
}

// stmt returns a cached prepared statement; query uses '?' placeholders
// unless it was built by the dialect already.
func (s *SQLStore) stmt(ctx context.Context, name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}
	s.statements[name] = stmt
	return stmt, nil
}

func (s *SQLStore) exec(ctx context.Context, name, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := s.stmt(ctx, name, query)
	if err != nil {
		return nil, err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func (s *SQLStore) SaveUser(ctx context.Context, user *entity.User) error {
	query := s.d.upsert("users", "user_id", userColumns, userColumns[1:])
	_, err := s.exec(ctx, "saveUser", query, user.Id, user.Username, user.FirstName, user.LastName)
	return err
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	stmt, err := s.stmt(ctx, "getUser", s.d.rebind(
		"SELECT user_id, username, first_name, last_name FROM users WHERE user_id=?"))
	if err != nil {
		return nil, err
	}
	var u entity.User
	err = stmt.QueryRowContext(ctx, id).Scan(&u.Id, &u.Username, &u.FirstName, &u.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreatePayment inserts a new payment attempt; transient failures are retried.
func (s *SQLStore) CreatePayment(ctx context.Context, p *entity.PaymentAttempt) error {
	query := s.d.rebind(`INSERT INTO payments(id, user_id, plan_id, amount_cents, pushin_id, status, created_at, paid_at)
		VALUES(?,?,?,?,?,?,?,?)`)
	return withRetry(ctx, s.log, "create payment", func(ctx context.Context) error {
		_, err := s.exec(ctx, "createPayment", query,
			p.Id, p.UserId, p.PlanId, p.Amount, p.ChargeId, string(p.Status), p.CreatedAt.Unix(), unixOrZero(p.PaidAt))
		return err
	})
}

func (s *SQLStore) GetPaymentByCharge(ctx context.Context, chargeId string) (*entity.PaymentAttempt, error) {
	stmt, err := s.stmt(ctx, "getPayment", s.d.rebind(
		`SELECT id, user_id, plan_id, amount_cents, pushin_id, status, created_at, paid_at
		FROM payments WHERE pushin_id=?`))
	if err != nil {
		return nil, err
	}
	var p entity.PaymentAttempt
	var status string
	var created, paid int64
	err = stmt.QueryRowContext(ctx, chargeId).Scan(
		&p.Id, &p.UserId, &p.PlanId, &p.Amount, &p.ChargeId, &status, &created, &paid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Status = entity.PaymentStatus(status)
	p.CreatedAt = fromUnix(created)
	p.PaidAt = fromUnix(paid)
	return &p, nil
}

// ActivatePayment marks the payment paid and writes the subscription in one
// transaction. It returns false without changes when the payment was not in
// the created state, so a repeated notification cannot grant twice.
func (s *SQLStore) ActivatePayment(ctx context.Context, a entity.Activation) (*entity.Subscription, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.d.rebind(
		"UPDATE payments SET status=?, paid_at=? WHERE pushin_id=? AND status=?"),
		string(entity.PaymentPaid), a.Now.Unix(), a.ChargeId, string(entity.PaymentCreated))
	if err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	current, err := scanSubscription(tx.QueryRowContext(ctx, s.d.rebind(
		"SELECT user_id, plan_id, start_ts, end_ts, active FROM subscriptions WHERE user_id=?"+s.d.forUpdate),
		a.UserId))
	if err != nil {
		return nil, false, fmt.Errorf("read subscription: %w", err)
	}

	sub := a.Apply(current)
	_, err = tx.ExecContext(ctx, s.d.upsert("subscriptions", "user_id", subscriptionColumns, subscriptionColumns[1:]),
		sub.UserId, sub.PlanId, sub.StartsAt.Unix(), sub.EndsAt.Unix(), boolInt(sub.Active))
	if err != nil {
		return nil, false, fmt.Errorf("upsert subscription: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return sub, true, nil
}

func (s *SQLStore) GetSubscription(ctx context.Context, userId int64) (*entity.Subscription, error) {
	stmt, err := s.stmt(ctx, "getSubscription", s.d.rebind(
		"SELECT user_id, plan_id, start_ts, end_ts, active FROM subscriptions WHERE user_id=?"))
	if err != nil {
		return nil, err
	}
	sub, err := scanSubscription(stmt.QueryRowContext(ctx, userId))
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ExpiredSubscriptions lists active subscriptions whose end is before now.
func (s *SQLStore) ExpiredSubscriptions(ctx context.Context, now time.Time) ([]*entity.Subscription, error) {
	stmt, err := s.stmt(ctx, "expiredSubscriptions", s.d.rebind(
		"SELECT user_id, plan_id, start_ts, end_ts, active FROM subscriptions WHERE active=1 AND end_ts<? ORDER BY end_ts"))
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("expired subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*entity.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// DeactivateSubscription clears the active flag if the subscription is
// still expired at now; a renewal that happened meanwhile is left alone.
func (s *SQLStore) DeactivateSubscription(ctx context.Context, userId int64, now time.Time) (bool, error) {
	res, err := s.exec(ctx, "deactivateSubscription", s.d.rebind(
		"UPDATE subscriptions SET active=0 WHERE user_id=? AND active=1 AND end_ts<?"),
		userId, now.Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) SaveInviteLink(ctx context.Context, link *entity.InviteLink) error {
	query := s.d.upsert("invite_links", "link", inviteColumns, inviteColumns[1:])
	_, err := s.exec(ctx, "saveInviteLink", query,
		link.Link, link.UserId, link.CreatedAt.Unix(), unixOrZero(link.ExpiresAt), boolInt(link.Revoked))
	return err
}

// ActiveInviteLinks returns the user's links that were not revoked yet.
func (s *SQLStore) ActiveInviteLinks(ctx context.Context, userId int64) ([]*entity.InviteLink, error) {
	stmt, err := s.stmt(ctx, "activeInviteLinks", s.d.rebind(
		"SELECT link, user_id, created_ts, expires_ts, revoked FROM invite_links WHERE user_id=? AND revoked=0 ORDER BY created_ts"))
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("invite links: %w", err)
	}
	defer rows.Close()

	var links []*entity.InviteLink
	for rows.Next() {
		var l entity.InviteLink
		var created, expires int64
		var revoked int
		if err = rows.Scan(&l.Link, &l.UserId, &created, &expires, &revoked); err != nil {
			return nil, err
		}
		l.CreatedAt = fromUnix(created)
		l.ExpiresAt = fromUnix(expires)
		l.Revoked = revoked != 0
		links = append(links, &l)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *SQLStore) RevokeInviteLink(ctx context.Context, link string) error {
	_, err := s.exec(ctx, "revokeInviteLink", s.d.rebind(
		"UPDATE invite_links SET revoked=1 WHERE link=?"), link)
	return err
}

// GetSetting returns an empty string for unknown keys.
func (s *SQLStore) GetSetting(ctx context.Context, key string) (string, error) {
	stmt, err := s.stmt(ctx, "getSetting", s.d.rebind("SELECT value FROM settings WHERE name=?"))
	if err != nil {
		return "", err
	}
	var value string
	err = stmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (s *SQLStore) SetSetting(ctx context.Context, key, value string) error {
	query := s.d.upsert("settings", "name", settingColumns, settingColumns[1:])
	_, err := s.exec(ctx, "setSetting", query, key, value)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSubscription returns nil, nil when there is no row
func scanSubscription(row scanner) (*entity.Subscription, error) {
	var sub entity.Subscription
	var start, end int64
	var active int
	err := row.Scan(&sub.UserId, &sub.PlanId, &start, &end, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sub.StartsAt = fromUnix(start)
	sub.EndsAt = fromUnix(end)
	sub.Active = active != 0
	return &sub, nil
}

func fromUnix(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
