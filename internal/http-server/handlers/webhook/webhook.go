package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"vipbot/entity"
	"vipbot/lib/api/response"
	"vipbot/lib/sl"

	"github.com/ajg/form"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	ConfirmPayment(ctx context.Context, n *entity.PaymentNotification) (entity.ConfirmResult, error)
}

// PushinPay receives the form-encoded payment notifications of the provider.
// Business outcomes are answered with 200; only a storage failure is not,
// so the provider delivers the notification again.
func PushinPay(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.webhook")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var n entity.PaymentNotification
		dec := form.NewDecoder(r.Body)
		dec.IgnoreUnknownKeys(true)
		err := dec.Decode(&n)
		if err == nil {
			err = n.Bind(r)
		}
		if err != nil {
			logger.Warn("bind notification", sl.Err(err))
			render.JSON(w, r, response.Ack{Ok: false, Error: "invalid_request"})
			return
		}
		logger = logger.With(
			sl.Charge(n.Id),
			slog.String("status", n.Status),
			slog.String("value", n.Value),
		)

		result, err := handler.ConfirmPayment(r.Context(), &n)
		if err != nil {
			logger.Error("confirm payment", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Ack{Ok: false, Error: "internal_error"})
			return
		}
		logger.Info("payment notification", slog.String("result", string(result)))

		render.JSON(w, r, Ack(result))
	}
}

func Ack(result entity.ConfirmResult) response.Ack {
	switch result {
	case entity.ConfirmIgnored:
		return response.Ack{Ok: true, Ignored: true}
	case entity.ConfirmDuplicate:
		return response.Ack{Ok: true, Duplicate: true}
	case entity.ConfirmNotFound:
		return response.Ack{Ok: false, Error: "payment_not_found"}
	default:
		return response.Ack{Ok: true}
	}
}
