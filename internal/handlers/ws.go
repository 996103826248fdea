package handlers

import (
	"net/http"

	"github.com/beatline/beatline/internal/auth"
	"github.com/beatline/beatline/internal/ws"
)

type WSHandler struct {
	Registry *ws.Registry
	Handler  ws.EventHandler
}

// ServeWS verifies the credential presented in the Sec-WebSocket-Protocol
// header and admits the connection. Verification runs to completion before
// any registry interaction: a rejected handshake touches no delivery state.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Sec-WebSocket-Protocol")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws.ServeWS(h.Registry, h.Handler, w, r, userID)
}
