package entity

import "time"

// InviteLink is a single-use link to the VIP group issued after a payment.
// It is revoked as soon as its owner joins the group.
type InviteLink struct {
	Link      string    `bson:"_id"`
	UserId    int64     `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
	Revoked   bool      `bson:"revoked"`
}
