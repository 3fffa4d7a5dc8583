package bot

import (
	"fmt"
	"strings"
	"time"
	"vipbot/entity"
	"vipbot/lib/clock"
	"vipbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// CreateInviteLink issues a single-use invite to the VIP group.
func (t *TgBot) CreateInviteLink(expiresAt time.Time) (string, error) {
	inv, err := t.api.CreateChatInviteLink(t.conf.GroupId, &tgbotapi.CreateChatInviteLinkOpts{
		ExpireDate:  expiresAt.Unix(),
		MemberLimit: 1,
	})
	if err != nil {
		return "", &entity.TransportError{Op: "create invite link", Err: err}
	}
	return inv.InviteLink, nil
}

// RevokeInviteLink fails silently: the link may be expired or used already.
func (t *TgBot) RevokeInviteLink(link string) {
	_, err := t.api.RevokeChatInviteLink(t.conf.GroupId, link, nil)
	if err != nil {
		t.log.Debug("revoke invite link", sl.Secret("link", link), sl.Err(err))
	}
}

// EvictMember removes the user from the VIP group; the unban lets a later
// purchase join again.
func (t *TgBot) EvictMember(userId int64) {
	log := t.log.With(sl.User(userId))
	_, err := t.api.BanChatMember(t.conf.GroupId, userId, nil)
	if err != nil {
		log.Warn("ban member", sl.Err(err))
		return
	}
	_, err = t.api.UnbanChatMember(t.conf.GroupId, userId, &tgbotapi.UnbanChatMemberOpts{OnlyIfBanned: true})
	if err != nil {
		log.Warn("unban member", sl.Err(err))
	}
}

func (t *TgBot) NotifyPaymentApproved(userId int64, inviteLink string) {
	t.plainResponse(userId, Sanitize(textPaymentOk))
	if inviteLink == "" {
		t.plainResponse(userId, Sanitize(textNoInvite))
		return
	}
	t.sendWithKeyboard(userId, Sanitize(textAccessGroup), accessKeyboard(inviteLink))
}

func (t *TgBot) NotifySubscriptionExpired(userId int64) {
	t.sendWithKeyboard(userId, Sanitize(textExpired), showPlansKeyboard())
}

func (t *TgBot) NotifyAdminsPayment(summary *entity.PaymentSummary) {
	t.notifyAdmins(Sanitize(formatSummary(summary, t.conf.Location)))
}

// NotifyAdmins queues a log alert for the admin digest.
func (t *TgBot) NotifyAdmins(text string) {
	if t.digest == nil {
		return
	}
	t.digest.Add(text)
}

func formatSummary(s *entity.PaymentSummary, loc *time.Location) string {
	payer := s.PayerName
	if payer == "" {
		payer = "—"
	}
	lines := []string{
		"✅ Pagamento aprovado!",
		fmt.Sprintf("🆔 Clientid: %d", s.UserId),
		fmt.Sprintf("👤 User: %s", s.Handle),
		fmt.Sprintf("📝 Nome: %s", payer),
		fmt.Sprintf("💵 Valor: %s", entity.FormatAmount(s.Amount)),
		"📦 Tipo: assinatura",
		fmt.Sprintf("🔗 Plano: %s", s.Plan.Title),
	}
	if !s.Plan.IsLifetime() {
		lines = append(lines, fmt.Sprintf("📅 Expira em: %s", clock.Date(s.EndsAt, loc)))
	}
	if !s.Invite {
		lines = append(lines, "⚠️ Link de convite não foi gerado")
	}
	return strings.Join(lines, "\n")
}
