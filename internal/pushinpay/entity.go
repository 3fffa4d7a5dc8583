package pushinpay

import (
	"encoding/json"
	"vipbot/entity"
)

type splitRule struct {
	Value     int64  `json:"value"`
	AccountId string `json:"account_id"`
}

type cashInRequest struct {
	Value      int64       `json:"value"`
	WebhookUrl string      `json:"webhook_url"`
	SplitRules []splitRule `json:"split_rules"`
}

type cashInResponse struct {
	Id     string      `json:"id"`
	QrCode string      `json:"qr_code"`
	Status string      `json:"status"`
	Value  json.Number `json:"value"`
}

func (r *cashInResponse) charge() *entity.Charge {
	value, _ := r.Value.Int64()
	return &entity.Charge{
		Id:     r.Id,
		QrCode: r.QrCode,
		Status: r.Status,
		Value:  value,
	}
}
