package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/beatline/beatline/internal/auth"
	"github.com/beatline/beatline/internal/chat"
	"github.com/beatline/beatline/internal/config"
	"github.com/beatline/beatline/internal/email"
	"github.com/beatline/beatline/internal/handlers"
	"github.com/beatline/beatline/internal/middleware"
	"github.com/beatline/beatline/internal/notify"
	"github.com/beatline/beatline/internal/store/sqlstore"
	"github.com/beatline/beatline/internal/ws"
)

var addr = flag.String("addr", "", "http service address (overrides BEATLINE_ADDR)")

const purgeInterval = time.Hour

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.JWTSecret != "" {
		auth.SecretKey = []byte(cfg.JWTSecret)
	}

	store, err := sqlstore.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	registry := ws.NewRegistry()
	emailer := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	dispatcher := notify.NewDispatcher(store, registry, emailer)
	router := chat.NewRouter(store, registry, dispatcher)

	// Expired notifications are invisible to reads; this loop reclaims them.
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := store.PurgeExpiredNotifications(); err != nil {
				log.Printf("Error purging notifications: %v", err)
			} else if n > 0 {
				log.Printf("Purged %d expired notifications", n)
			}
		}
	}()

	authHandler := &handlers.AuthHandler{Store: store}
	conversationHandler := &handlers.ConversationHandler{Store: store, Router: router}
	notificationHandler := &handlers.NotificationHandler{Dispatcher: dispatcher}
	wsHandler := &handlers.WSHandler{Registry: registry, Handler: router}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	// Public endpoints
	r.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/login", authHandler.Login).Methods("POST")

	// Authenticated API
	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware)
	api.HandleFunc("/users/search", authHandler.SearchUsers).Methods("GET")
	api.HandleFunc("/conversations", conversationHandler.GetConversations).Methods("GET")
	api.HandleFunc("/conversations", conversationHandler.StartConversation).Methods("POST")
	api.HandleFunc("/conversations/{id}/messages", conversationHandler.GetMessages).Methods("GET")
	api.HandleFunc("/messages/read", conversationHandler.MarkMessagesRead).Methods("POST")
	api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	api.HandleFunc("/notifications", notificationHandler.CreateNotification).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("POST")

	// WebSocket endpoint; the credential rides in the handshake, not a header
	r.HandleFunc("/ws", wsHandler.ServeWS)

	log.Println("Starting server on", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, r))
}
