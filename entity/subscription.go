package entity

import "time"

// Subscription is the current access period of a user; there is at most one per user.
// Access is valid while now < EndsAt and Active is set.
type Subscription struct {
	UserId   int64     `json:"user_id" bson:"_id"`
	PlanId   string    `json:"plan_id" bson:"plan_id"`
	StartsAt time.Time `json:"starts_at" bson:"starts_at"`
	EndsAt   time.Time `json:"ends_at" bson:"ends_at"`
	Active   bool      `json:"active" bson:"active"`
}

// SubscriptionStatus is what the user sees in /status.
type SubscriptionStatus struct {
	Active bool
	PlanId string
	EndsAt time.Time
}

type RenewalPolicy string

const (
	// RenewalReset starts a new period at payment time, dropping what was left.
	RenewalReset RenewalPolicy = "reset"
	// RenewalExtend appends the new period to the end of a still active one.
	RenewalExtend RenewalPolicy = "extend"
)

type ConfirmResult string

const (
	ConfirmOk        ConfirmResult = "confirmed"
	ConfirmDuplicate ConfirmResult = "duplicate"
	ConfirmIgnored   ConfirmResult = "ignored"
	ConfirmNotFound  ConfirmResult = "not_found"
)

// Activation describes the subscription period granted by a confirmed payment.
type Activation struct {
	ChargeId string
	UserId   int64
	PlanId   string
	Now      time.Time
	Duration time.Duration
	Policy   RenewalPolicy
}

// Apply returns the subscription that replaces current (which may be nil).
func (a Activation) Apply(current *Subscription) *Subscription {
	base := a.Now
	if a.Policy == RenewalExtend && current != nil && current.Active && current.EndsAt.After(a.Now) {
		base = current.EndsAt
	}
	return &Subscription{
		UserId:   a.UserId,
		PlanId:   a.PlanId,
		StartsAt: a.Now,
		EndsAt:   base.Add(a.Duration),
		Active:   true,
	}
}
