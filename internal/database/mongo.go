package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"vipbot/entity"
	"vipbot/internal/config"
	"vipbot/lib/sl"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionUsers         = "users"
	collectionPayments      = "payments"
	collectionSubscriptions = "subscriptions"
	collectionInviteLinks   = "invite_links"
	collectionSettings      = "settings"
)

type setting struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoDB is the document store alternative to SQLStore.
type MongoDB struct {
	client   *mongo.Client
	database string
	log      *slog.Logger
}

func NewMongoClient(ctx context.Context, conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	m := &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
		log:      logger.With(sl.Module("database"), slog.String("driver", "mongo")),
	}
	if err = m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := m.collection(collectionPayments).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"charge_id", 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb index payments: %w", err)
	}
	_, err = m.collection(collectionSubscriptions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"active", 1}, {"ends_at", 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb index subscriptions: %w", err)
	}
	_, err = m.collection(collectionInviteLinks).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"user_id", 1}, {"revoked", 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb index invite links: %w", err)
	}
	return nil
}

func (m *MongoDB) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.client.Disconnect(ctx)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) SaveUser(ctx context.Context, user *entity.User) error {
	filter := bson.D{{"_id", user.Id}}
	update := bson.D{{"$set", bson.D{
		{"username", user.Username},
		{"first_name", user.FirstName},
		{"last_name", user.LastName},
	}}}
	_, err := m.collection(collectionUsers).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (m *MongoDB) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	var user entity.User
	err := m.collection(collectionUsers).FindOne(ctx, bson.D{{"_id", id}}).Decode(&user)
	if err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

func (m *MongoDB) CreatePayment(ctx context.Context, p *entity.PaymentAttempt) error {
	return withRetry(ctx, m.log, "create payment", func(ctx context.Context) error {
		_, err := m.collection(collectionPayments).InsertOne(ctx, p)
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
}

func (m *MongoDB) GetPaymentByCharge(ctx context.Context, chargeId string) (*entity.PaymentAttempt, error) {
	var p entity.PaymentAttempt
	err := m.collection(collectionPayments).FindOne(ctx, bson.D{{"charge_id", chargeId}}).Decode(&p)
	if err != nil {
		return nil, m.findError(err)
	}
	return &p, nil
}

// ActivatePayment flips the payment to paid with a conditional update; only
// the caller that wins the flip writes the subscription.
func (m *MongoDB) ActivatePayment(ctx context.Context, a entity.Activation) (*entity.Subscription, bool, error) {
	return activate(ctx, m, m.log, a)
}

func (m *MongoDB) markPaid(ctx context.Context, chargeId string, paidAt time.Time) (bool, error) {
	filter := bson.D{{"charge_id", chargeId}, {"status", entity.PaymentCreated}}
	update := bson.D{{"$set", bson.D{
		{"status", entity.PaymentPaid},
		{"paid_at", paidAt},
	}}}
	res, err := m.collection(collectionPayments).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// unmarkPaid undoes markPaid; the paid_at match leaves other activations alone.
func (m *MongoDB) unmarkPaid(ctx context.Context, chargeId string, paidAt time.Time) error {
	filter := bson.D{{"charge_id", chargeId}, {"status", entity.PaymentPaid}, {"paid_at", paidAt}}
	update := bson.D{
		{"$set", bson.D{{"status", entity.PaymentCreated}}},
		{"$unset", bson.D{{"paid_at", ""}}},
	}
	_, err := m.collection(collectionPayments).UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) SaveSubscription(ctx context.Context, sub *entity.Subscription) error {
	filter := bson.D{{"_id", sub.UserId}}
	update := bson.D{{"$set", bson.D{
		{"plan_id", sub.PlanId},
		{"starts_at", sub.StartsAt},
		{"ends_at", sub.EndsAt},
		{"active", sub.Active},
	}}}
	_, err := m.collection(collectionSubscriptions).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (m *MongoDB) GetSubscription(ctx context.Context, userId int64) (*entity.Subscription, error) {
	var sub entity.Subscription
	err := m.collection(collectionSubscriptions).FindOne(ctx, bson.D{{"_id", userId}}).Decode(&sub)
	if err != nil {
		return nil, m.findError(err)
	}
	return &sub, nil
}

func (m *MongoDB) ExpiredSubscriptions(ctx context.Context, now time.Time) ([]*entity.Subscription, error) {
	filter := bson.D{{"active", true}, {"ends_at", bson.D{{"$lt", now}}}}
	opts := options.Find().SetSort(bson.D{{"ends_at", 1}})
	cursor, err := m.collection(collectionSubscriptions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("expired subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	var subs []*entity.Subscription
	if err = cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (m *MongoDB) DeactivateSubscription(ctx context.Context, userId int64, now time.Time) (bool, error) {
	filter := bson.D{{"_id", userId}, {"active", true}, {"ends_at", bson.D{{"$lt", now}}}}
	update := bson.D{{"$set", bson.D{{"active", false}}}}
	res, err := m.collection(collectionSubscriptions).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("deactivate: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (m *MongoDB) SaveInviteLink(ctx context.Context, link *entity.InviteLink) error {
	filter := bson.D{{"_id", link.Link}}
	update := bson.D{{"$set", bson.D{
		{"user_id", link.UserId},
		{"created_at", link.CreatedAt},
		{"expires_at", link.ExpiresAt},
		{"revoked", link.Revoked},
	}}}
	_, err := m.collection(collectionInviteLinks).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (m *MongoDB) ActiveInviteLinks(ctx context.Context, userId int64) ([]*entity.InviteLink, error) {
	filter := bson.D{{"user_id", userId}, {"revoked", false}}
	opts := options.Find().SetSort(bson.D{{"created_at", 1}})
	cursor, err := m.collection(collectionInviteLinks).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("invite links: %w", err)
	}
	defer cursor.Close(ctx)

	var links []*entity.InviteLink
	if err = cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (m *MongoDB) RevokeInviteLink(ctx context.Context, link string) error {
	update := bson.D{{"$set", bson.D{{"revoked", true}}}}
	_, err := m.collection(collectionInviteLinks).UpdateOne(ctx, bson.D{{"_id", link}}, update)
	return err
}

func (m *MongoDB) GetSetting(ctx context.Context, key string) (string, error) {
	var s setting
	err := m.collection(collectionSettings).FindOne(ctx, bson.D{{"_id", key}}).Decode(&s)
	if err != nil {
		return "", m.findError(err)
	}
	return s.Value, nil
}

func (m *MongoDB) SetSetting(ctx context.Context, key, value string) error {
	update := bson.D{{"$set", bson.D{{"value", value}}}}
	_, err := m.collection(collectionSettings).UpdateOne(ctx, bson.D{{"_id", key}}, update, options.Update().SetUpsert(true))
	return err
}
