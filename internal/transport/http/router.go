package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/protocol"
)

// NewRouter mounts the websocket endpoint and the small HTTP helpers.
func NewRouter(service *app.GameService, ws *WSHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/time", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(protocol.NewServerTime(service.Now()))
	}).Methods(http.MethodGet)
	return r
}
