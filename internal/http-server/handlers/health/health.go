package health

import (
	"net/http"
	"vipbot/lib/api/response"

	"github.com/go-chi/render"
)

// Root answers the platform health checks.
func Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ack{Ok: true})
	}
}
