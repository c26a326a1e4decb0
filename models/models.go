// models.go
// Defines the core data structures shared by the portal API, the store adapters and the session layer.

package models

import (
	"time"
)

// BroadcastID is the reserved recipient id for messages addressed to every user.
// A user row with this id must exist; the hosted store enforces messages.recipient_id as a foreign key.
const BroadcastID = "00000000-0000-0000-0000-000000000000"

// AnonymousReporter replaces the reporter id of safety reports filed anonymously.
const AnonymousReporter = "anonymous"

// UserRole defines the access level of a user.
type UserRole string

const (
	RoleStaff         UserRole = "staff"
	RoleSupervisor    UserRole = "supervisor"
	RoleManager       UserRole = "manager"
	RoleSafetyManager UserRole = "safety_manager"
	RoleAdmin         UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleStaff, RoleSupervisor, RoleManager, RoleSafetyManager, RoleAdmin:
		return true
	}
	return false
}

// IsManagerTier reports whether the role manages a department.
func (r UserRole) IsManagerTier() bool {
	return r == RoleSupervisor || r == RoleManager
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

// User represents an authenticated portal user.
type User struct {
	ID                 string     `firestore:"id" json:"id"`
	Name               string     `firestore:"name" json:"name"`
	Username           string     `firestore:"username" json:"username"`
	PasswordHash       string     `firestore:"password_hash" json:"-"`
	Role               UserRole   `firestore:"role" json:"role"`
	StaffID            string     `firestore:"staff_id" json:"staff_id"`
	Department         string     `firestore:"department" json:"department"`
	Status             UserStatus `firestore:"status" json:"status"`
	MustChangePassword bool       `firestore:"must_change_password" json:"must_change_password"`
	ManagerID          string     `firestore:"manager_id,omitempty" json:"manager_id,omitempty"`
	Avatar             string     `firestore:"avatar,omitempty" json:"avatar,omitempty"`
	CreatedAt          time.Time  `firestore:"created_at" json:"created_at"`
}

// TaskStatus defines the lifecycle of a ground task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskBlocked:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Task is a unit of ground work. AssignedTo holds the assignee's display name.
type Task struct {
	ID          string     `firestore:"id" json:"id"`
	Title       string     `firestore:"title" json:"title"`
	Description string     `firestore:"description" json:"description"`
	AssignedTo  string     `firestore:"assigned_to" json:"assigned_to"`
	Status      TaskStatus `firestore:"status" json:"status"`
	Priority    Priority   `firestore:"priority" json:"priority"`
	Location    string     `firestore:"location" json:"location"`
	Department  string     `firestore:"department" json:"department"`
	CreatedBy   string     `firestore:"created_by" json:"created_by,omitempty"`
	UpdatedBy   string     `firestore:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `firestore:"created_at" json:"created_at"`
}

type ReportType string

const (
	ReportNearMiss  ReportType = "near_miss"
	ReportIncident  ReportType = "incident"
	ReportHazard    ReportType = "hazard"
	ReportEquipment ReportType = "equipment"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportNearMiss, ReportIncident, ReportHazard, ReportEquipment:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// ReportStatus may move in any direction; resolved reports can be reopened.
type ReportStatus string

const (
	ReportOpen          ReportStatus = "open"
	ReportInvestigating ReportStatus = "investigating"
	ReportResolved      ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	return s == ReportOpen || s == ReportInvestigating || s == ReportResolved
}

// ReportEntities are the entities extracted from a report description.
type ReportEntities struct {
	Locations []string `firestore:"locations" json:"locations"`
	Equipment []string `firestore:"equipment" json:"equipment"`
	Personnel []string `firestore:"personnel" json:"personnel"`
}

type SafetyReport struct {
	ID           string          `firestore:"id" json:"id"`
	ReporterID   string          `firestore:"reporter_id" json:"reporter_id"`
	ReporterName string          `firestore:"-" json:"reporter_name,omitempty"`
	Type         ReportType      `firestore:"type" json:"type"`
	Description  string          `firestore:"description" json:"description"`
	Translation  string          `firestore:"translation,omitempty" json:"translation,omitempty"`
	Severity     Severity        `firestore:"severity" json:"severity"`
	Status       ReportStatus    `firestore:"status" json:"status"`
	AIAnalysis   string          `firestore:"ai_analysis,omitempty" json:"ai_analysis,omitempty"`
	Entities     *ReportEntities `firestore:"entities,omitempty" json:"entities,omitempty"`
	ImageURLs    []string        `firestore:"image_urls,omitempty" json:"image_urls,omitempty"`
	CreatedAt    time.Time       `firestore:"created_at" json:"created_at"`
}

// IsAnonymous reports whether the reporter identity was withheld.
func (r SafetyReport) IsAnonymous() bool {
	return r.ReporterID == AnonymousReporter
}

type LeaveType string

const (
	LeaveAnnual    LeaveType = "annual"
	LeaveSick      LeaveType = "sick"
	LeaveEmergency LeaveType = "emergency"
)

func (t LeaveType) Valid() bool {
	return t == LeaveAnnual || t == LeaveSick || t == LeaveEmergency
}

type LeaveStatus string

const (
	LeavePending        LeaveStatus = "pending"
	LeaveApproved       LeaveStatus = "approved"
	LeaveRejected       LeaveStatus = "rejected"
	LeaveSuggestionSent LeaveStatus = "suggestion_sent"
)

// Terminal reports whether no further transition is possible.
func (s LeaveStatus) Terminal() bool {
	return s == LeaveApproved || s == LeaveRejected
}

// LeaveRequest dates use the YYYY-MM-DD layout.
type LeaveRequest struct {
	ID                 string      `firestore:"id" json:"id"`
	StaffID            string      `firestore:"staff_id" json:"staff_id"`
	StaffName          string      `firestore:"staff_name" json:"staff_name"`
	Type               LeaveType   `firestore:"type" json:"type"`
	StartDate          string      `firestore:"start_date" json:"start_date"`
	EndDate            string      `firestore:"end_date" json:"end_date"`
	Status             LeaveStatus `firestore:"status" json:"status"`
	Reason             string      `firestore:"reason" json:"reason"`
	Suggestion         string      `firestore:"suggestion,omitempty" json:"suggestion,omitempty"`
	SuggestedStartDate string      `firestore:"suggested_start_date,omitempty" json:"suggested_start_date,omitempty"`
	SuggestedEndDate   string      `firestore:"suggested_end_date,omitempty" json:"suggested_end_date,omitempty"`
	CreatedAt          time.Time   `firestore:"created_at" json:"created_at"`
}

// DateLayout is the wire layout of leave dates.
const DateLayout = "2006-01-02"

type ForumPost struct {
	ID         string       `firestore:"id" json:"id"`
	AuthorID   string       `firestore:"author_id" json:"author_id"`
	AuthorName string       `firestore:"author_name" json:"author_name"`
	Title      string       `firestore:"title" json:"title"`
	Content    string       `firestore:"content" json:"content"`
	CreatedAt  time.Time    `firestore:"created_at" json:"created_at"`
	Replies    []ForumReply `firestore:"-" json:"replies"`
}

type ForumReply struct {
	ID         string    `firestore:"id" json:"id"`
	PostID     string    `firestore:"post_id" json:"post_id"`
	AuthorID   string    `firestore:"author_id" json:"author_id"`
	AuthorName string    `firestore:"author_name" json:"author_name"`
	Content    string    `firestore:"content" json:"content"`
	CreatedAt  time.Time `firestore:"created_at" json:"created_at"`
}

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

type ChatMessage struct {
	ID          string        `firestore:"id" json:"id"`
	SenderID    string        `firestore:"sender_id" json:"sender_id"`
	RecipientID string        `firestore:"recipient_id" json:"recipient_id"`
	SenderName  string        `firestore:"sender_name" json:"sender_name"`
	Text        string        `firestore:"text" json:"text"`
	Status      MessageStatus `firestore:"status" json:"status"`
	CreatedAt   time.Time     `firestore:"created_at" json:"created_at"`
}

// IsBroadcast reports whether the message is addressed to every user.
func (m ChatMessage) IsBroadcast() bool {
	return m.RecipientID == BroadcastID
}

// DocFile references a document whose bytes live in blob storage.
type DocFile struct {
	ID         string    `firestore:"id" json:"id"`
	Name       string    `firestore:"name" json:"name"`
	Type       string    `firestore:"type" json:"type"`
	UploadedBy string    `firestore:"uploaded_by" json:"uploaded_by"`
	FilePath   string    `firestore:"file_path,omitempty" json:"file_path,omitempty"`
	FileURL    string    `firestore:"file_url,omitempty" json:"file_url,omitempty"`
	FileSize   int64     `firestore:"file_size,omitempty" json:"file_size,omitempty"`
	CreatedAt  time.Time `firestore:"created_at" json:"date"`
}

type NotificationKind string

const (
	KindTask      NotificationKind = "task"
	KindSafety    NotificationKind = "safety"
	KindDoc       NotificationKind = "doc"
	KindLeave     NotificationKind = "leave"
	KindForum     NotificationKind = "forum"
	KindMessage   NotificationKind = "message"
	KindBroadcast NotificationKind = "broadcast"
)

type NotificationSeverity string

const (
	SeverityInfo   NotificationSeverity = "info"
	SeverityUrgent NotificationSeverity = "urgent"
)

// Notification lives only for the lifetime of the session that raised it.
type Notification struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Kind      NotificationKind     `json:"kind"`
	Severity  NotificationSeverity `json:"severity"`
	IsRead    bool                 `json:"is_read"`
	Timestamp time.Time            `json:"timestamp"`
}

// AuditLog represents an audit log entry for privileged actions.
type AuditLog struct {
	LogID     string    `firestore:"log_id" json:"log_id"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
	UserID    string    `firestore:"user_id" json:"user_id"`
	Action    string    `firestore:"action" json:"action"`
	Details   string    `firestore:"details" json:"details"`
}
