package db

import (
	"time"

	"github.com/mmonsif/aeroconnect/models"
)

// Defaults applied when a nullable column arrives empty.
const (
	DefaultAssignee   = "Unassigned"
	DefaultLocation   = "N/A"
	DefaultDepartment = "General"
)

func orDefault(r models.Row, key, def string) string {
	if s := r.String(key); s != "" {
		return s
	}
	return def
}

func boolValue(r models.Row, key string) bool {
	b, _ := r[key].(bool)
	return b
}

func int64Value(r models.Row, key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func stringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// DecodeUser converts a users row into a User.
func DecodeUser(r models.Row) models.User {
	status := models.UserStatus(r.String("status"))
	if !status.Valid() {
		status = models.UserActive
	}
	return models.User{
		ID:                 r.ID(),
		Name:               r.String("name"),
		Username:           r.String("username"),
		PasswordHash:       r.String("password_hash"),
		Role:               models.UserRole(r.String("role")),
		StaffID:            r.String("staff_id"),
		Department:         orDefault(r, "department", DefaultDepartment),
		Status:             status,
		MustChangePassword: boolValue(r, "must_change_password"),
		ManagerID:          r.String("manager_id"),
		Avatar:             r.String("avatar"),
		CreatedAt:          r.Time("created_at"),
	}
}

// UserRow is the inverse of DecodeUser.
func UserRow(u models.User) models.Row {
	row := models.Row{
		"id":                   u.ID,
		"name":                 u.Name,
		"username":             u.Username,
		"password_hash":        u.PasswordHash,
		"role":                 string(u.Role),
		"staff_id":             u.StaffID,
		"department":           u.Department,
		"status":               string(u.Status),
		"must_change_password": u.MustChangePassword,
		"created_at":           stamp(u.CreatedAt),
	}
	if u.ManagerID != "" {
		row["manager_id"] = u.ManagerID
	}
	if u.Avatar != "" {
		row["avatar"] = u.Avatar
	}
	return row
}

func DecodeTask(r models.Row) models.Task {
	status := models.TaskStatus(r.String("status"))
	if !status.Valid() {
		status = models.TaskPending
	}
	priority := models.Priority(r.String("priority"))
	if !priority.Valid() {
		priority = models.PriorityMedium
	}
	return models.Task{
		ID:          r.ID(),
		Title:       r.String("title"),
		Description: r.String("description"),
		AssignedTo:  orDefault(r, "assigned_to", DefaultAssignee),
		Status:      status,
		Priority:    priority,
		Location:    orDefault(r, "location", DefaultLocation),
		Department:  orDefault(r, "department", DefaultDepartment),
		CreatedBy:   r.String("created_by"),
		UpdatedBy:   r.String("updated_by"),
		CreatedAt:   r.Time("created_at"),
	}
}

func TaskRow(t models.Task) models.Row {
	return models.Row{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"assigned_to": t.AssignedTo,
		"status":      string(t.Status),
		"priority":    string(t.Priority),
		"location":    t.Location,
		"department":  t.Department,
		"created_by":  t.CreatedBy,
		"updated_by":  t.UpdatedBy,
		"created_at":  stamp(t.CreatedAt),
	}
}

func DecodeSafetyReport(r models.Row) models.SafetyReport {
	report := models.SafetyReport{
		ID:          r.ID(),
		ReporterID:  r.String("reporter_id"),
		Type:        models.ReportType(r.String("type")),
		Description: r.String("description"),
		Translation: r.String("translation"),
		Severity:    models.Severity(r.String("severity")),
		Status:      models.ReportStatus(r.String("status")),
		AIAnalysis:  r.String("ai_analysis"),
		ImageURLs:   stringSlice(r["image_urls"]),
		CreatedAt:   r.Time("created_at"),
	}
	if !report.Status.Valid() {
		report.Status = models.ReportOpen
	}
	if e, ok := r["entities"].(map[string]interface{}); ok {
		report.Entities = &models.ReportEntities{
			Locations: stringSlice(e["locations"]),
			Equipment: stringSlice(e["equipment"]),
			Personnel: stringSlice(e["personnel"]),
		}
	} else if e, ok := r["entities"].(*models.ReportEntities); ok && e != nil {
		copied := *e
		report.Entities = &copied
	}
	return report
}

func SafetyReportRow(s models.SafetyReport) models.Row {
	row := models.Row{
		"id":          s.ID,
		"reporter_id": s.ReporterID,
		"type":        string(s.Type),
		"description": s.Description,
		"severity":    string(s.Severity),
		"status":      string(s.Status),
		"created_at":  stamp(s.CreatedAt),
	}
	if s.Translation != "" {
		row["translation"] = s.Translation
	}
	if s.AIAnalysis != "" {
		row["ai_analysis"] = s.AIAnalysis
	}
	if s.Entities != nil {
		row["entities"] = map[string]interface{}{
			"locations": toInterfaces(s.Entities.Locations),
			"equipment": toInterfaces(s.Entities.Equipment),
			"personnel": toInterfaces(s.Entities.Personnel),
		}
	}
	if len(s.ImageURLs) > 0 {
		row["image_urls"] = toInterfaces(s.ImageURLs)
	}
	return row
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func DecodeLeaveRequest(r models.Row) models.LeaveRequest {
	return models.LeaveRequest{
		ID:                 r.ID(),
		StaffID:            r.String("staff_id"),
		StaffName:          r.String("staff_name"),
		Type:               models.LeaveType(r.String("type")),
		StartDate:          r.String("start_date"),
		EndDate:            r.String("end_date"),
		Status:             models.LeaveStatus(r.String("status")),
		Reason:             r.String("reason"),
		Suggestion:         r.String("suggestion"),
		SuggestedStartDate: r.String("suggested_start_date"),
		SuggestedEndDate:   r.String("suggested_end_date"),
		CreatedAt:          r.Time("created_at"),
	}
}

// LeaveRequestRow always carries the suggestion columns so that clearing them
// propagates through an update.
func LeaveRequestRow(l models.LeaveRequest) models.Row {
	return models.Row{
		"id":                   l.ID,
		"staff_id":             l.StaffID,
		"staff_name":           l.StaffName,
		"type":                 string(l.Type),
		"start_date":           l.StartDate,
		"end_date":             l.EndDate,
		"status":               string(l.Status),
		"reason":               l.Reason,
		"suggestion":           nullable(l.Suggestion),
		"suggested_start_date": nullable(l.SuggestedStartDate),
		"suggested_end_date":   nullable(l.SuggestedEndDate),
		"created_at":           stamp(l.CreatedAt),
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func DecodeForumPost(r models.Row) models.ForumPost {
	return models.ForumPost{
		ID:         r.ID(),
		AuthorID:   r.String("author_id"),
		AuthorName: r.String("author_name"),
		Title:      r.String("title"),
		Content:    r.String("content"),
		CreatedAt:  r.Time("created_at"),
		Replies:    []models.ForumReply{},
	}
}

func ForumPostRow(p models.ForumPost) models.Row {
	return models.Row{
		"id":          p.ID,
		"author_id":   p.AuthorID,
		"author_name": p.AuthorName,
		"title":       p.Title,
		"content":     p.Content,
		"created_at":  stamp(p.CreatedAt),
	}
}

func DecodeForumReply(r models.Row) models.ForumReply {
	return models.ForumReply{
		ID:         r.ID(),
		PostID:     r.String("post_id"),
		AuthorID:   r.String("author_id"),
		AuthorName: r.String("author_name"),
		Content:    r.String("content"),
		CreatedAt:  r.Time("created_at"),
	}
}

func ForumReplyRow(p models.ForumReply) models.Row {
	return models.Row{
		"id":          p.ID,
		"post_id":     p.PostID,
		"author_id":   p.AuthorID,
		"author_name": p.AuthorName,
		"content":     p.Content,
		"created_at":  stamp(p.CreatedAt),
	}
}

func DecodeMessage(r models.Row) models.ChatMessage {
	status := models.MessageStatus(r.String("status"))
	if status == "" {
		status = models.MessageSent
	}
	return models.ChatMessage{
		ID:          r.ID(),
		SenderID:    r.String("sender_id"),
		RecipientID: r.String("recipient_id"),
		SenderName:  r.String("sender_name"),
		Text:        r.String("text"),
		Status:      status,
		CreatedAt:   r.Time("created_at"),
	}
}

func MessageRow(m models.ChatMessage) models.Row {
	return models.Row{
		"id":           m.ID,
		"sender_id":    m.SenderID,
		"recipient_id": m.RecipientID,
		"sender_name":  m.SenderName,
		"text":         m.Text,
		"status":       string(m.Status),
		"created_at":   stamp(m.CreatedAt),
	}
}

func DecodeDocument(r models.Row) models.DocFile {
	return models.DocFile{
		ID:         r.ID(),
		Name:       r.String("name"),
		Type:       r.String("type"),
		UploadedBy: r.String("uploaded_by"),
		FilePath:   r.String("file_path"),
		FileURL:    r.String("file_url"),
		FileSize:   int64Value(r, "file_size"),
		CreatedAt:  r.Time("created_at"),
	}
}

func DocumentRow(d models.DocFile) models.Row {
	row := models.Row{
		"id":          d.ID,
		"name":        d.Name,
		"type":        d.Type,
		"uploaded_by": d.UploadedBy,
		"created_at":  stamp(d.CreatedAt),
	}
	if d.FilePath != "" {
		row["file_path"] = d.FilePath
	}
	if d.FileURL != "" {
		row["file_url"] = d.FileURL
	}
	if d.FileSize > 0 {
		row["file_size"] = d.FileSize
	}
	return row
}

func AuditLogRow(a models.AuditLog) models.Row {
	return models.Row{
		"id":         a.LogID,
		"log_id":     a.LogID,
		"user_id":    a.UserID,
		"action":     a.Action,
		"details":    a.Details,
		"created_at": stamp(a.Timestamp),
	}
}
