package websocket

import (
	"log"
	"net/http"
	"time"

	"rangebot-backend/internal/domain"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Handler streams the latest status snapshot to connected clients.
type Handler struct {
	status domain.StatusRepository
}

func NewHandler(status domain.StatusRepository) *Handler {
	return &Handler{
		status: status,
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	log.Println("New Client Connected")

	// Send the current snapshot immediately
	if err := conn.WriteJSON(h.status.Latest()); err != nil {
		log.Println("Write error:", err)
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(h.status.Latest()); err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}
