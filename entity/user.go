package entity

import (
	"fmt"
	"strings"
)

// User is a Telegram account that talked to the bot at least once.
type User struct {
	Id        int64  `json:"id" bson:"_id" validate:"required"`
	Username  string `json:"username" bson:"username"`
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`
}

// Handle returns "@username", or "@" when the account has none.
func (u *User) Handle() string {
	if u == nil {
		return "@"
	}
	return "@" + strings.TrimPrefix(u.Username, "@")
}

func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		if name == "" {
			return fmt.Sprintf("@%s (%d)", u.Username, u.Id)
		}
		return fmt.Sprintf("%s @%s (%d)", name, u.Username, u.Id)
	}
	if name == "" {
		return fmt.Sprintf("%d", u.Id)
	}
	return fmt.Sprintf("%s (%d)", name, u.Id)
}
