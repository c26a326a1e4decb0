package handlers

import (
	"log"
	"net/http"

	"github.com/mmonsif/aeroconnect/models"
)

type MessageHandler struct{}

func NewMessageHandler() *MessageHandler {
	return &MessageHandler{}
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

type BroadcastRequest struct {
	Text string `json:"text"`
}

type ContactRequest struct {
	ContactID string `json:"contact_id"`
}

type MessagesResponse struct {
	Messages []models.ChatMessage `json:"messages"`
	Unread   int                  `json:"unread"`
}

// ListMessages returns one conversation when ?contact= is set, otherwise
// every message the caller may see.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	resp := MessagesResponse{Unread: sess.UnreadMessageCount()}
	if contact := r.URL.Query().Get("contact"); contact != "" {
		resp.Messages = sess.Conversation(contact)
	} else {
		resp.Messages = sess.Messages()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Contacts lists the users the caller can message
func (h *MessageHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Contacts())
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decode(w, r, &req) {
		return
	}

	msg, err := sess.SendMessage(r.Context(), req.RecipientID, req.Text)
	if err != nil {
		fail(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req BroadcastRequest
	if !decode(w, r, &req) {
		return
	}

	msg, err := sess.Broadcast(r.Context(), req.Text)
	if err != nil {
		fail(w, "send broadcast", err)
		return
	}

	log.Printf("📢 Broadcast sent by %s", sess.User().Username)
	writeJSON(w, http.StatusCreated, msg)
}

// MarkRead marks the caller's conversation with a contact as read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ContactRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.MarkConversationRead(r.Context(), req.ContactID); err != nil {
		fail(w, "mark conversation read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation marked read"})
}

func (h *MessageHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ContactRequest
	if !decode(w, r, &req) {
		return
	}

	summary, err := sess.SummarizeConversation(r.Context(), req.ContactID)
	if err != nil {
		fail(w, "summarize conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
