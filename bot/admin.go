package bot

import (
	"context"
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// setVideo stores the video or animation the admin replied to as the
// welcome video shown on /start.
func (t *TgBot) setVideo(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.isAdmin(chatId) {
		t.plainResponse(chatId, Sanitize(textAdminsOnly))
		return nil
	}

	fileId := replyVideoId(ctx.EffectiveMessage)
	if fileId == "" {
		t.plainResponse(chatId, Sanitize(textSetVideoUsage))
		return nil
	}
	if err := t.core.SetWelcomeVideo(context.Background(), fileId); err != nil {
		t.reportError(chatId, "/setvideo", err)
		return nil
	}
	t.log.Info("welcome video updated", sl.User(chatId))
	t.plainResponse(chatId, Sanitize(textVideoUpdated))
	return nil
}

func replyVideoId(msg *tgbotapi.Message) string {
	if msg == nil || msg.ReplyToMessage == nil {
		return ""
	}
	reply := msg.ReplyToMessage
	if reply.Video != nil {
		return reply.Video.FileId
	}
	if reply.Animation != nil {
		return reply.Animation.FileId
	}
	return ""
}
