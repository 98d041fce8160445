package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/tdnguyen/go-deliveryhub/internal/config"
	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/server"
)

type DeliveryApp struct {
	log            *log.Logger
	repo           database.DeliveryRepository
	hub            *server.Hub
	broadcaster    server.Broadcaster
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewDeliveryApp(mux *http.ServeMux, logger *log.Logger, hub *server.Hub, repo database.DeliveryRepository, cfg *config.Config) *DeliveryApp {
	a := &DeliveryApp{
		log:            logger,
		repo:           repo,
		hub:            hub,
		broadcaster:    hub,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", a.createAccount)
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.HandleFunc("GET /api/auth/session", a.authMiddleware(a.session))
	mux.HandleFunc("GET /api/auth/logout", a.authMiddleware(a.logout))
	mux.HandleFunc("GET /api/chat/order/{orderId}", a.authMiddleware(a.getChatHistory))
	mux.HandleFunc("GET /api/chat/unread", a.authMiddleware(a.getUnreadCount))
	mux.HandleFunc("POST /api/chat/mark-read", a.authMiddleware(a.markMessagesRead))
	mux.HandleFunc("POST /api/chat/system-message", a.authMiddleware(a.sendSystemMessage))
	mux.HandleFunc("GET /api/location/order/{orderId}/current", a.authMiddleware(a.getCurrentLocation))
	mux.HandleFunc("GET /api/location/order/{orderId}/history", a.authMiddleware(a.getLocationHistory))
	mux.HandleFunc("POST /api/location/update", a.authMiddleware(a.updateLocation))
	mux.HandleFunc("POST /api/location/stop-tracking/{orderId}", a.authMiddleware(a.stopTracking))
	mux.HandleFunc("GET /ws", a.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)

	a.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return a
}

func (a *DeliveryApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				a.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				a.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (a *DeliveryApp) Start() error {
	a.log.Printf("starting server on %s\n", a.mux.Addr)
	return a.mux.ListenAndServe()
}

func (a *DeliveryApp) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down HTTP server...")
	if err := a.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
