package models

import "time"

// Table names a logical collection in the hosted store.
type Table string

const (
	TableUsers          Table = "users"
	TableTasks          Table = "tasks"
	TableDocuments      Table = "documents"
	TableSafetyReports  Table = "safety_reports"
	TableLeaveRequests  Table = "leave_requests"
	TableForumPosts     Table = "forum_posts"
	TableForumReplies   Table = "forum_replies"
	TableMessages       Table = "messages"
	TableAuditLogs      Table = "audit_logs"
)

// SyncedTables are mirrored into every session and followed through the change feed.
var SyncedTables = []Table{
	TableUsers,
	TableTasks,
	TableDocuments,
	TableSafetyReports,
	TableLeaveRequests,
	TableForumPosts,
	TableForumReplies,
	TableMessages,
}

// Ordering describes how rows of a table are sorted by created_at.
type Ordering int

const (
	Unordered Ordering = iota
	NewestFirst
	OldestFirst
)

func (t Table) Ordering() Ordering {
	switch t {
	case TableMessages:
		return OldestFirst
	case TableUsers, TableAuditLogs:
		return Unordered
	}
	return NewestFirst
}

// Op is the kind of change carried by a change event.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpResync closes the initial replay of one table. It carries no row,
	// only the keys the replay contained.
	OpResync Op = "resync"
)

// Valid reports whether o is a row change. OpResync is not.
func (o Op) Valid() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete
}

// Row is a record as it travels on the wire: snake_case keys, nullable values.
type Row map[string]interface{}

// ID returns the primary key, or "" when absent.
func (r Row) ID() string {
	return r.String("id")
}

func (r Row) String(key string) string {
	if r == nil {
		return ""
	}
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

func (r Row) Has(key string) bool {
	if r == nil {
		return false
	}
	v, ok := r[key]
	return ok && v != nil
}

// Time reads a timestamp stored either natively or as RFC3339 text.
func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ChangeEvent is one change delivered by the change feed.
// Initial marks rows replayed when a feed is first opened; those rows are the
// current remote state. Keys is only set on OpResync.
type ChangeEvent struct {
	Table   Table    `json:"table"`
	Op      Op       `json:"op"`
	Row     Row      `json:"row,omitempty"`
	Initial bool     `json:"initial,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}
