package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
	"vipbot/internal/config"
	errs "vipbot/internal/http-server/handlers/errors"
	"vipbot/internal/http-server/handlers/health"
	"vipbot/internal/http-server/handlers/qrcode"
	"vipbot/internal/http-server/handlers/webhook"
	"vipbot/internal/http-server/middleware/logging"
	"vipbot/internal/http-server/middleware/timeout"
	"vipbot/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const requestTimeout = 15 * time.Second

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	webhook.Core
	qrcode.Core
}

// Router builds the public routes: the provider webhook, the QR page and
// the health check.
func Router(log *slog.Logger, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(requestTimeout))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logging.New(log))
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errs.NotFound(log))
	router.MethodNotAllowed(errs.NotAllowed(log))

	router.Get("/", health.Root())
	router.Post("/pushin/webhook", webhook.PushinPay(log, handler))
	router.Get("/qrcode/{id}", qrcode.Page(log, handler))

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      Router(log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIp, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}
