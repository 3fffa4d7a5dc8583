package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const maxTelegramMessageLen = 4096

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With(slog.Int64("id", chatId)).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Warn("sending safe message", sl.Err(err))
		}
	}
}

// sendWithKeyboard sends a message with an inline keyboard attached.
func (t *TgBot) sendWithKeyboard(chatId int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if text == "" {
		return
	}
	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode:   "MarkdownV2",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message with keyboard", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
			ReplyMarkup: keyboard,
		})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Warn("sending message with keyboard fallback", sl.Err(err))
		}
	}
}

// editWithKeyboard replaces the text and keyboard of a bot message,
// sending a new message when the original cannot be edited.
func (t *TgBot) editWithKeyboard(msg tgbotapi.MaybeInaccessibleMessage, chatId int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if msg != nil {
		opts := &tgbotapi.EditMessageTextOpts{
			ChatId:    chatId,
			MessageId: msg.GetMessageId(),
			ParseMode: "MarkdownV2",
		}
		if keyboard != nil {
			opts.ReplyMarkup = *keyboard
		}
		_, _, err := t.api.EditMessageText(text, opts)
		if err == nil {
			return
		}
		t.log.With(slog.Int64("id", chatId)).Debug("editing message", sl.Err(err))
	}
	if keyboard != nil {
		t.sendWithKeyboard(chatId, text, *keyboard)
		return
	}
	t.plainResponse(chatId, text)
}

func Sanitize(input string) string {
	reservedChars := "\\_*[]()~`>#+-=|{}.!"
	var sb strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

// notifyAdmins sends a MarkdownV2 text to every configured admin.
func (t *TgBot) notifyAdmins(msg string) {
	for _, id := range t.adminIds() {
		t.plainResponse(id, msg)
	}
}

func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.Error("bot command failed",
		slog.String("command", command),
		sl.User(chatId),
		sl.Err(err),
	)
	t.plainResponse(chatId, Sanitize(textSomethingWrong))
}

func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		cutAt := maxLen
		nlIdx := strings.LastIndex(text[:maxLen], "\n")
		if nlIdx > 0 {
			cutAt = nlIdx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

func codeBlock(s string) string {
	return fmt.Sprintf("`%s`", Sanitize(s))
}
