package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

// audit records a privileged action. Persisting the entry is best effort.
func (s *Session) audit(ctx context.Context, action, details string) {
	user := s.User()
	entry := models.AuditLog{
		LogID:     fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now().UTC(),
		UserID:    user.ID,
		Action:    action,
		Details:   details,
	}
	log.Printf("AUDIT: User '%s' performed action '%s' - Details: %s", user.ID, action, details)

	if _, err := s.store.Mutate(ctx, models.TableAuditLogs, db.Mutation{Op: models.OpInsert, Payload: db.AuditLogRow(entry)}); err != nil {
		log.Printf("⚠️  Failed to persist audit entry %s: %v", entry.LogID, err)
	}
}

// AuditLogs reads the audit trail. It is not mirrored.
func (s *Session) AuditLogs(ctx context.Context) ([]models.AuditLog, error) {
	if !s.Engine().CanAdministerUsers() {
		return nil, visibility.ErrForbidden
	}
	rows, err := s.store.Query(ctx, models.TableAuditLogs, nil)
	if err != nil {
		return nil, err
	}
	logs := make([]models.AuditLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, models.AuditLog{
			LogID:     r.String("log_id"),
			Timestamp: r.Time("created_at"),
			UserID:    r.String("user_id"),
			Action:    r.String("action"),
			Details:   r.String("details"),
		})
	}
	return logs, nil
}
