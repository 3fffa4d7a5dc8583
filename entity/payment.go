package entity

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
	"vipbot/lib/validate"
)

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentAttempt is one charge requested by a user for a plan.
// ChargeId is assigned by the provider and is unique across attempts.
type PaymentAttempt struct {
	Id        string        `json:"id" bson:"_id" validate:"required"`
	UserId    int64         `json:"user_id" bson:"user_id" validate:"required"`
	PlanId    string        `json:"plan_id" bson:"plan_id" validate:"required"`
	Amount    int64         `json:"amount" bson:"amount" validate:"min=1"`
	ChargeId  string        `json:"charge_id" bson:"charge_id" validate:"required"`
	Status    PaymentStatus `json:"status" bson:"status" validate:"oneof=created paid"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	PaidAt    time.Time     `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
}

func (p *PaymentAttempt) IsPaid() bool {
	return p.Status == PaymentPaid
}

// Charge is what the provider returns for a new PIX charge.
type Charge struct {
	Id     string `json:"id"`
	QrCode string `json:"qr_code"`
	Status string `json:"status,omitempty"`
	Value  int64  `json:"value,omitempty"`
}

// PaymentNotification is the form-encoded body of the provider webhook.
type PaymentNotification struct {
	Id                        string `form:"id" validate:"omitempty,max=128"`
	Status                    string `form:"status" validate:"omitempty,max=32"`
	Value                     string `form:"value"`
	EndToEndId                string `form:"end_to_end_id"`
	PayerName                 string `form:"payer_name"`
	PayerNationalRegistration string `form:"payer_national_registration"`
}

// Only id and status are validated; the other fields are informational and
// never block a confirmation. Longer values are cut to these limits.
const (
	maxEndToEndId   = 128
	maxPayerName    = 256
	maxRegistration = 32
)

func (n *PaymentNotification) Bind(_ *http.Request) error {
	n.Id = strings.TrimSpace(n.Id)
	n.Status = strings.ToLower(strings.TrimSpace(n.Status))
	n.Value = strings.TrimSpace(n.Value)
	n.EndToEndId = truncate(strings.TrimSpace(n.EndToEndId), maxEndToEndId)
	n.PayerName = truncate(strings.TrimSpace(n.PayerName), maxPayerName)
	n.PayerNationalRegistration = truncate(strings.TrimSpace(n.PayerNationalRegistration), maxRegistration)
	return validate.Struct(n)
}

// truncate cuts s to at most limit runes
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func (n *PaymentNotification) IsPaid() bool {
	return n.Status == string(PaymentPaid)
}

// Amount reported by the provider, 0 when absent or not an integer
func (n *PaymentNotification) Amount() int64 {
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// PaymentSummary is sent to administrators when a payment is approved.
type PaymentSummary struct {
	UserId    int64
	Handle    string
	PayerName string
	Amount    int64
	Plan      Plan
	EndsAt    time.Time
	Invite    bool
}

// FormatAmount renders centavos as "R$ 17.99".
func FormatAmount(amount int64) string {
	return fmt.Sprintf("R$ %d.%02d", amount/100, amount%100)
}
