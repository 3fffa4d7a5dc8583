package qrcode

import (
	"context"
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"
	"vipbot/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goqr "github.com/skip2/go-qrcode"
)

const imageSize = 260

type Core interface {
	PixCode(ctx context.Context, chargeId string) (string, error)
}

var pageTemplate = template.Must(template.New("qrcode").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Pagamento PIX</title></head>
<body style="font-family:sans-serif;background:#111;color:#eee;display:flex;flex-direction:column;align-items:center;gap:16px;padding:24px;">
{{- if .Code}}
  <h2>Pagamento selecionado: PIX</h2>
  <img src="data:image/png;base64,{{.Image}}" width="{{.Size}}" height="{{.Size}}" alt="QR Code PIX"/>
  <div style="max-width:640px;word-wrap:break-word;background:#222;padding:12px;border-radius:8px">{{.Code}}</div>
  <small>Escaneie o QR Code ou copie e cole o código no seu banco</small>
{{- else}}
  <h3>QR Code indisponível. Tente novamente.</h3>
{{- end}}
</body></html>
`))

type page struct {
	Code  string
	Image template.URL
	Size  int
}

// Page renders the PIX code of a charge as a QR image. Any failure yields the
// "unavailable" page, never an error status.
func Page(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chargeId := chi.URLParam(r, "id")
		logger := log.With(
			sl.Module("http.handlers.qrcode"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Charge(chargeId),
		)

		data := page{Size: imageSize}
		code, err := handler.PixCode(r.Context(), chargeId)
		if err != nil {
			logger.Warn("fetch pix code", sl.Err(err))
		}
		if code != "" {
			png, err := goqr.Encode(code, goqr.Medium, imageSize)
			if err != nil {
				logger.Warn("encode qr code", sl.Err(err))
			} else {
				data.Code = code
				data.Image = template.URL(base64.StdEncoding.EncodeToString(png))
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err = pageTemplate.Execute(w, data); err != nil {
			logger.Error("render page", sl.Err(err))
		}
	}
}
