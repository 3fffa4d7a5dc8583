package errors

import (
	"log/slog"
	"net/http"
	"vipbot/lib/api/response"
	"vipbot/lib/sl"

	"github.com/go-chi/render"
)

func NotFound(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.With(sl.Module("http.handlers.errors")).Debug("not found", slog.String("path", r.URL.Path))

		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("Requested resource not found"))
	}
}
