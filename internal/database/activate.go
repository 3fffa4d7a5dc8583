package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"vipbot/entity"
	"vipbot/lib/sl"
)

const revertTimeout = 5 * time.Second

// activationSteps are the writes of an activation on a store without
// multi-document transactions.
type activationSteps interface {
	markPaid(ctx context.Context, chargeId string, paidAt time.Time) (bool, error)
	unmarkPaid(ctx context.Context, chargeId string, paidAt time.Time) error
	GetSubscription(ctx context.Context, userId int64) (*entity.Subscription, error)
	SaveSubscription(ctx context.Context, sub *entity.Subscription) error
}

// activate flips the payment to paid and writes the subscription. When the
// subscription cannot be written the payment goes back to created, so a
// redelivered notification grants it again instead of reading as a duplicate.
func activate(ctx context.Context, s activationSteps, log *slog.Logger, a entity.Activation) (*entity.Subscription, bool, error) {
	ok, err := s.markPaid(ctx, a.ChargeId, a.Now)
	if err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	current, err := s.GetSubscription(ctx, a.UserId)
	if err == nil {
		sub := a.Apply(current)
		if err = s.SaveSubscription(ctx, sub); err == nil {
			return sub, true, nil
		}
	}

	revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()
	if rerr := s.unmarkPaid(revertCtx, a.ChargeId, a.Now); rerr != nil {
		log.Error("revert payment status", sl.Charge(a.ChargeId), sl.Err(rerr))
	}
	return nil, false, fmt.Errorf("activate subscription: %w", err)
}
