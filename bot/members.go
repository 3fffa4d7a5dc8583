package bot

import (
	"context"
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

const statusMember = "member"

// vipGroupMember filters chat_member updates of the VIP group where the
// user became a regular member.
func (t *TgBot) vipGroupMember(u *tgbotapi.ChatMemberUpdated) bool {
	if u == nil || u.Chat.Id != t.conf.GroupId {
		return false
	}
	return u.NewChatMember.GetStatus() == statusMember
}

// onChatMember revokes the invites of a user who just joined.
func (t *TgBot) onChatMember(_ *tgbotapi.Bot, ctx *ext.Context) error {
	userId := ctx.ChatMember.NewChatMember.GetUser().Id
	t.log.Debug("member joined", sl.User(userId))
	// errors are logged by core
	_ = t.core.OnMemberJoined(context.Background(), userId)
	return nil
}
