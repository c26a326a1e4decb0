package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

// Messages returns every message the session may see, oldest first.
func (s *Session) Messages() []models.ChatMessage {
	rows := s.mirror.Rows(models.TableMessages)
	msgs := make([]models.ChatMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, db.DecodeMessage(r))
	}
	return s.Engine().FilterMessages(msgs)
}

// Conversation returns the thread with one contact, or the broadcast channel
// when contactID is the broadcast id.
func (s *Session) Conversation(contactID string) []models.ChatMessage {
	me := s.User().ID
	var out []models.ChatMessage
	for _, m := range s.Messages() {
		switch {
		case contactID == models.BroadcastID:
			if m.IsBroadcast() {
				out = append(out, m)
			}
		case m.SenderID == me && m.RecipientID == contactID,
			m.SenderID == contactID && m.RecipientID == me:
			out = append(out, m)
		}
	}
	return out
}

// UnreadMessageCount counts direct messages to the session user not yet read.
func (s *Session) UnreadMessageCount() int {
	me := s.User().ID
	n := 0
	for _, m := range s.Messages() {
		if m.RecipientID == me && m.Status != models.MessageRead {
			n++
		}
	}
	return n
}

// SendMessage appends the message to the mirror immediately; it is removed
// again if the store rejects it.
func (s *Session) SendMessage(ctx context.Context, recipientID, text string) (models.ChatMessage, error) {
	user, engine := s.actor()
	text = strings.TrimSpace(text)
	if text == "" || recipientID == "" {
		return models.ChatMessage{}, fmt.Errorf("recipient and text are required: %w", ErrInvalid)
	}
	if recipientID == models.BroadcastID && !engine.CanBroadcast() {
		return models.ChatMessage{}, visibility.ErrForbidden
	}

	msg := models.ChatMessage{
		ID:          uuid.NewString(),
		SenderID:    user.ID,
		RecipientID: recipientID,
		SenderName:  user.Name,
		Text:        text,
		Status:      models.MessageSent,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.insertOptimistic(ctx, models.TableMessages, db.MessageRow(msg)); err != nil {
		if recipientID == models.BroadcastID && errors.Is(err, db.ErrConstraint) {
			return models.ChatMessage{}, fmt.Errorf("%w: %w", ErrBroadcastAccountMissing, err)
		}
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// Broadcast sends text to every user.
func (s *Session) Broadcast(ctx context.Context, text string) (models.ChatMessage, error) {
	return s.SendMessage(ctx, models.BroadcastID, text)
}

// MarkConversationRead marks every unread message from contactID to the session user as read.
func (s *Session) MarkConversationRead(ctx context.Context, contactID string) error {
	me := s.User().ID
	for _, status := range []models.MessageStatus{models.MessageSent, models.MessageDelivered} {
		_, err := s.write(ctx, models.TableMessages, db.Mutation{
			Op:      models.OpUpdate,
			Match:   models.Row{"sender_id": contactID, "recipient_id": me, "status": string(status)},
			Payload: models.Row{"status": string(models.MessageRead)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SummarizeConversation asks the analyzer for a short summary of one thread.
func (s *Session) SummarizeConversation(ctx context.Context, contactID string) (string, error) {
	msgs := s.Conversation(contactID)
	if len(msgs) == 0 {
		return "", fmt.Errorf("conversation is empty: %w", ErrInvalid)
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.SenderName, m.Text))
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()
	return s.analyzer.SummarizeConversation(ctx, lines)
}
