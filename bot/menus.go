package bot

import (
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Command lists for Telegram's menu button. Everyone gets commandsUser;
// configured admins get commandsAdmin in their private chat.

var commandsUser = []tgbotapi.BotCommand{
	{Command: "start", Description: "Menu inicial"},
	{Command: "status", Description: "Situação da assinatura"},
	{Command: "help", Description: "Ajuda"},
}

var commandsAdmin = []tgbotapi.BotCommand{
	{Command: "start", Description: "Menu inicial"},
	{Command: "status", Description: "Situação da assinatura"},
	{Command: "setvideo", Description: "Definir vídeo de boas-vindas"},
	{Command: "help", Description: "Ajuda"},
}

func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsUser, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", sl.Err(err))
	}
}

func (t *TgBot) syncAdminMenus() {
	for _, id := range t.adminIds() {
		_, err := t.api.SetMyCommands(commandsAdmin, &tgbotapi.SetMyCommandsOpts{
			Scope: tgbotapi.BotCommandScopeChat{ChatId: id},
		})
		if err != nil {
			t.log.Warn("setting admin commands", sl.User(id), sl.Err(err))
		}
	}
}
