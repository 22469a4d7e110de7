package server

import (
	"net/http"
	"time"

	"flock/internal/api/dto"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// subscribeUpdates upgrades the connection and streams tracker events. The
// handshake is a single subscribe message carrying the user id, answered
// with a subscribed ack; after that the socket is push-only.
func subscribeUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Warn("Websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	ctx := r.Context()

	var hello dto.ChannelMessage
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return
	}
	if hello.Event != dto.EventSubscribe {
		conn.Close(websocket.StatusPolicyViolation, "expected subscribe")
		return
	}

	sub, err := registry.Subscribe(ctx, hello.UserID)
	if err != nil {
		log.Error("Failed to register subscriber", "user_id", hello.UserID, "error", err)
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}
	defer sub.Close()

	if err := wsjson.Write(ctx, conn, dto.ChannelMessage{
		Event:     dto.EventSubscribed,
		UserID:    hello.UserID,
		Message:   "Subscribed to tracker updates",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case event := <-sub.Events():
			msg := dto.ChannelMessage{
				Event:        dto.EventNewTracker,
				Domain:       event.Domain,
				Organization: event.Organization,
				Method:       event.Method,
				IsNew:        event.IsNew,
				Timestamp:    event.Timestamp,
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				log.Debug("Subscriber write failed, dropping connection", "user_id", sub.UserID, "error", err)
				return
			}
		}
	}
}
