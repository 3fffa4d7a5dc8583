package bot

import (
	"context"
	"errors"
	"strings"
	"vipbot/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Callback data of inline buttons; Telegram limits it to 64 bytes.
const (
	cbUnlock    = "unlock"
	cbBuy       = "buy:" // buy:WEEK, buy:MONTH, buy:LIFE
	cbPaidCheck = "paid_check"
)

func homeKeyboard(previewsUrl string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{{Text: btnUnlock, CallbackData: cbUnlock}},
			{{Text: btnPreviews, Url: previewsUrl}},
		},
	}
}

func plansKeyboard(plans []entity.Plan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			{Text: p.Label, CallbackData: cbBuy + p.Id},
		})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func paymentKeyboard(qrUrl string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{{Text: btnPaid, CallbackData: cbPaidCheck}},
	}
	if qrUrl != "" {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{{Text: btnQrCode, Url: qrUrl}})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func showPlansKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{{Text: btnShowPlans, CallbackData: cbUnlock}},
		},
	}
}

func accessKeyboard(link string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{{Text: btnGroup, Url: link}},
			{{Text: btnShowPlans, CallbackData: cbUnlock}},
		},
	}
}

// onUnlock turns the message with the pressed button into the plan list.
func (t *TgBot) onUnlock(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	keyboard := plansKeyboard(t.core.Plans())
	t.editWithKeyboard(cq.Message, cq.From.Id, Sanitize(textChoosePlan), &keyboard)
	_, _ = cq.Answer(t.api, nil)
	return nil
}

// onBuy creates a charge for the selected plan and shows the PIX code.
func (t *TgBot) onBuy(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	chatId := cq.From.Id
	planId := strings.TrimPrefix(cq.Data, cbBuy)

	t.saveUser(&cq.From)
	charge, err := t.core.InitiateCharge(context.Background(), chatId, planId)
	if err != nil {
		if errors.Is(err, entity.ErrUnknownPlan) {
			_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: textUnknownPlan, ShowAlert: true})
			return nil
		}
		var ge *entity.GatewayError
		if errors.As(err, &ge) {
			// logged by core
			t.plainResponse(chatId, Sanitize(textChargeFailed))
		} else {
			t.reportError(chatId, cq.Data, err)
		}
		_, _ = cq.Answer(t.api, nil)
		return nil
	}

	t.editWithKeyboard(cq.Message, chatId, Sanitize(textPreparing+"\n\n"+textPayInstructions), nil)
	t.plainResponse(chatId, codeBlock(charge.QrCode))
	qrUrl := ""
	if t.conf.QrCodeUrl != nil {
		qrUrl = t.conf.QrCodeUrl(charge.Id)
	}
	t.sendWithKeyboard(chatId, Sanitize(textAfterPayment), paymentKeyboard(qrUrl))
	_, _ = cq.Answer(t.api, nil)
	return nil
}

// onPaidCheck is informational only; access is granted by the provider webhook.
func (t *TgBot) onPaidCheck(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	chatId := cq.From.Id
	t.plainResponse(chatId, Sanitize(textPreparing))
	t.plainResponse(chatId, Sanitize(textNotIdentified))
	_, _ = cq.Answer(t.api, nil)
	return nil
}
