package handler

import (
	"net/http"
	"time"

	"room-relay-backend/internal/middleware"
	"room-relay-backend/internal/relay"
	"room-relay-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSHandler upgrades /ws/:room_id connections and hands them to the relay
type WSHandler struct {
	roomService  *service.RoomService
	relay        *relay.Relay
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

func NewWSHandler(roomService *service.RoomService, rel *relay.Relay, allowedOrigins []string, writeTimeout time.Duration) *WSHandler {
	return &WSHandler{
		roomService: roomService,
		relay:       rel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// non-browser clients send no Origin
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		writeTimeout: writeTimeout,
	}
}

// Connect serves a relay session for the duration of the connection
// GET /ws/:room_id
func (h *WSHandler) Connect(c *gin.Context) {
	roomID := c.Param("room_id")

	// unknown rooms are refused before the upgrade
	if _, err := h.roomService.GetRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logrus.WithError(err).WithField("room_id", roomID).Warn("WebSocket upgrade failed")
		return
	}

	h.relay.Serve(c.Request.Context(), roomID, relay.NewPeer(conn, h.writeTimeout))
}
