package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mmonsif/aeroconnect/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type NotificationHandler struct {
	upgrader websocket.Upgrader
}

func NewNotificationHandler(allowedOrigins []string) *NotificationHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &NotificationHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
	Toast         *models.Notification  `json:"toast,omitempty"`
}

// StreamMessage is one frame pushed over the notification stream.
type StreamMessage struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	Unread       int                  `json:"unread"`
}

// ListNotifications returns the session's notifications, newest first, and the current toast
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	resp := NotificationsResponse{
		Notifications: sess.Notifications(),
		Unread:        sess.UnreadNotifications(),
	}
	if toast, ok := sess.Toast(); ok {
		resp.Toast = &toast
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkRead marks one notification read, or all of them when id is empty
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req IDRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.MarkNotificationRead(req.ID); err != nil {
		fail(w, "mark notification read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": sess.UnreadNotifications()})
}

func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req IDRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.DismissNotification(req.ID); err != nil {
		fail(w, "dismiss notification", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": sess.UnreadNotifications()})
}

func (h *NotificationHandler) DismissToast(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	sess.DismissToast()
	w.WriteHeader(http.StatusNoContent)
}

// Stream pushes the session's notifications over a websocket until the client
// goes away or the session ends.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	notes, cancel := sess.Listen()
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the reader only drains control frames; clients have nothing to say
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error for %s: %v", sess.User().Username, err)
				}
				return
			}
		}
	}()

	if err := writeFrame(conn, StreamMessage{Type: "connected", Unread: sess.UnreadNotifications()}); err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case n, ok := <-notes:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := writeFrame(conn, StreamMessage{Type: "notification", Notification: &n, Unread: sess.UnreadNotifications()}); err != nil {
				log.Printf("Failed to push notification to %s: %v", sess.User().Username, err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Ping failed for %s: %v", sess.User().Username, err)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
