package bot

import (
	"context"
	"fmt"
	"vipbot/entity"
	"vipbot/lib/clock"
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// start registers the user, plays the welcome video if one is set and shows
// the home menu.
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	t.saveUser(ctx.EffectiveUser)

	if video := t.core.WelcomeVideo(context.Background()); video != "" {
		_, err := t.api.SendVideo(chatId, tgbotapi.InputFileByID(video), nil)
		if err != nil {
			t.log.Warn("sending welcome video", sl.User(chatId), sl.Err(err))
		}
	}
	t.sendWithKeyboard(chatId, Sanitize(t.conf.WelcomeText), homeKeyboard(t.conf.PreviewsUrl))
	return nil
}

func (t *TgBot) status(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	st, err := t.core.GetStatus(context.Background(), chatId)
	if err != nil {
		t.reportError(chatId, "/status", err)
		return nil
	}
	text, keyboard := t.statusMessage(st)
	t.sendWithKeyboard(chatId, text, keyboard)
	return nil
}

func (t *TgBot) statusMessage(st *entity.SubscriptionStatus) (string, tgbotapi.InlineKeyboardMarkup) {
	if st == nil || !st.Active {
		return Sanitize(textNoSubscription), showPlansKeyboard()
	}
	keyboard := showPlansKeyboard()
	if t.conf.GroupUrl != "" {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
			[]tgbotapi.InlineKeyboardButton{{Text: btnGroup, Url: t.conf.GroupUrl}})
	}
	text := fmt.Sprintf(textActiveStatus, clock.Date(st.EndsAt, t.conf.Location))
	return Sanitize(text), keyboard
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	text := textHelp
	if t.isAdmin(chatId) {
		text += textHelpAdmin
	}
	t.plainResponse(chatId, Sanitize(text))
	return nil
}

func (t *TgBot) saveUser(u *tgbotapi.User) {
	if u == nil {
		return
	}
	err := t.core.SaveUser(context.Background(), &entity.User{
		Id:        u.Id,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
	if err != nil {
		t.log.Warn("saving user", sl.User(u.Id), sl.Err(err))
	}
}
