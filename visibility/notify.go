package visibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmonsif/aeroconnect/models"
)

// Lookup gives notification rules read access to the session's mirror.
type Lookup interface {
	Get(table models.Table, id string) (models.Row, bool)
}

// rule describes when a change to one table notifies a session.
//
// self reports whether the session caused the change; updates are always
// attributed through updated_by instead. audience decides whether the
// session is interested at all; build renders the notification.
type rule struct {
	self     func(e *Engine, row models.Row) bool
	audience func(e *Engine, row, prev models.Row, look Lookup) bool
	build    func(e *Engine, row models.Row, look Lookup) models.Notification
}

type ruleKey struct {
	table models.Table
	op    models.Op
}

var rules = map[ruleKey]rule{
	{models.TableMessages, models.OpInsert}: {
		self: column("sender_id", byID),
		audience: func(e *Engine, row, _ models.Row, _ Lookup) bool {
			to := row.String("recipient_id")
			return to == e.user.ID || to == models.BroadcastID
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			sender := row.String("sender_name")
			text := truncate(row.String("text"), 80)
			if row.String("recipient_id") == models.BroadcastID {
				return note(models.KindBroadcast, models.SeverityUrgent, "EMERGENCY BROADCAST", "%s: %s", sender, text)
			}
			return note(models.KindMessage, models.SeverityInfo, "New Secure Message", "From %s: %s", sender, text)
		},
	},

	{models.TableSafetyReports, models.OpInsert}: {
		self: column("reporter_id", byID),
		audience: func(e *Engine, _, _ models.Row, _ Lookup) bool {
			return e.CanProgressReport()
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			severity := models.SeverityInfo
			if models.Severity(row.String("severity")) == models.SeverityHigh {
				severity = models.SeverityUrgent
			}
			return note(models.KindSafety, severity, "New Safety Report", "%s reported (%s severity)",
				humanize(row.String("type")), row.String("severity"))
		},
	},

	{models.TableTasks, models.OpInsert}: {
		self: column("created_by", byID),
		audience: func(e *Engine, row, _ models.Row, _ Lookup) bool {
			return row.String("assigned_to") == e.user.Name
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			severity := models.SeverityInfo
			if models.Priority(row.String("priority")) == models.PriorityCritical {
				severity = models.SeverityUrgent
			}
			return note(models.KindTask, severity, "New Task Assigned", "%s at %s",
				row.String("title"), orDash(row.String("location")))
		},
	},

	{models.TableTasks, models.OpUpdate}: {
		audience: func(e *Engine, row, prev models.Row, _ Lookup) bool {
			if row.String("assigned_to") != e.user.Name {
				return false
			}
			status := models.TaskStatus(row.String("status"))
			if status != models.TaskInProgress && status != models.TaskCompleted {
				return false
			}
			return prev == nil || prev.String("status") != string(status)
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			return note(models.KindTask, models.SeverityInfo, "Task Updated", "%s is now %s",
				row.String("title"), humanize(row.String("status")))
		},
	},

	{models.TableLeaveRequests, models.OpInsert}: {
		self: column("staff_id", byStaffID),
		audience: func(e *Engine, row, _ models.Row, _ Lookup) bool {
			if e.IsLeaveOwner(decodeLeave(row)) {
				return false
			}
			return e.isAdmin() || (e.user.Role.IsManagerTier() && e.CanViewLeave(decodeLeave(row)))
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			return note(models.KindLeave, models.SeverityInfo, "New Leave Request", "%s requested %s leave (%s to %s)",
				row.String("staff_name"), row.String("type"), row.String("start_date"), row.String("end_date"))
		},
	},

	{models.TableLeaveRequests, models.OpUpdate}: {
		audience: func(e *Engine, row, prev models.Row, _ Lookup) bool {
			if !e.IsLeaveOwner(decodeLeave(row)) {
				return false
			}
			return prev == nil || prev.String("status") != row.String("status")
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			switch models.LeaveStatus(row.String("status")) {
			case models.LeaveApproved:
				return note(models.KindLeave, models.SeverityInfo, "Leave Approved", "Your leave from %s to %s was approved",
					row.String("start_date"), row.String("end_date"))
			case models.LeaveSuggestionSent:
				return note(models.KindLeave, models.SeverityUrgent, "Leave Counter-offer", "Suggested dates: %s to %s",
					row.String("suggested_start_date"), row.String("suggested_end_date"))
			}
			return note(models.KindLeave, models.SeverityUrgent, "Leave Update", "Your leave request is now %s",
				humanize(row.String("status")))
		},
	},

	{models.TableForumPosts, models.OpInsert}: {
		self: column("author_id", byID),
		audience: func(*Engine, models.Row, models.Row, Lookup) bool {
			return true
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			return note(models.KindForum, models.SeverityInfo, "New Forum Post", "%s: %s",
				row.String("author_name"), row.String("title"))
		},
	},

	{models.TableForumReplies, models.OpInsert}: {
		self: column("author_id", byID),
		audience: func(e *Engine, row, _ models.Row, look Lookup) bool {
			post, ok := look.Get(models.TableForumPosts, row.String("post_id"))
			return ok && post.String("author_id") == e.user.ID
		},
		build: func(_ *Engine, row models.Row, look Lookup) models.Notification {
			title := ""
			if post, ok := look.Get(models.TableForumPosts, row.String("post_id")); ok {
				title = post.String("title")
			}
			return note(models.KindForum, models.SeverityInfo, "New Reply", "%s replied to %s",
				row.String("author_name"), orDash(title))
		},
	},

	{models.TableDocuments, models.OpInsert}: {
		self: column("uploaded_by", byName),
		audience: func(*Engine, models.Row, models.Row, Lookup) bool {
			return true
		},
		build: func(_ *Engine, row models.Row, _ Lookup) models.Notification {
			return note(models.KindDoc, models.SeverityInfo, "New Document", "%s uploaded by %s",
				row.String("name"), row.String("uploaded_by"))
		},
	},
}

// Evaluate decides whether ev should notify the session. prev is the record
// as the mirror held it before the event. The returned notification has no id.
func (e *Engine) Evaluate(ev models.ChangeEvent, prev models.Row, look Lookup) (models.Notification, bool) {
	if ev.Initial {
		return models.Notification{}, false
	}
	r, ok := rules[ruleKey{ev.Table, ev.Op}]
	if !ok {
		return models.Notification{}, false
	}
	if e.causedBy(ev, r) {
		return models.Notification{}, false
	}
	if !r.audience(e, ev.Row, prev, look) {
		return models.Notification{}, false
	}
	return r.build(e, ev.Row, look), true
}

func (e *Engine) causedBy(ev models.ChangeEvent, r rule) bool {
	if ev.Op == models.OpUpdate {
		return ev.Row.String("updated_by") == e.user.ID
	}
	return r.self != nil && r.self(e, ev.Row)
}

type identity func(e *Engine) string

func byID(e *Engine) string      { return e.user.ID }
func byName(e *Engine) string    { return e.user.Name }
func byStaffID(e *Engine) string { return e.user.StaffID }

func column(key string, who identity) func(e *Engine, row models.Row) bool {
	return func(e *Engine, row models.Row) bool {
		v := row.String(key)
		return v != "" && v == who(e)
	}
}

func decodeLeave(row models.Row) models.LeaveRequest {
	return models.LeaveRequest{StaffID: row.String("staff_id"), Status: models.LeaveStatus(row.String("status"))}
}

func note(kind models.NotificationKind, severity models.NotificationSeverity, title, format string, args ...interface{}) models.Notification {
	return models.Notification{
		Title:     title,
		Message:   fmt.Sprintf(format, args...),
		Kind:      kind,
		Severity:  severity,
		Timestamp: time.Now(),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
