package handlers

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
)

type SafetyHandler struct{}

func NewSafetyHandler() *SafetyHandler {
	return &SafetyHandler{}
}

type ReportStatusRequest struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

type TranslateRequest struct {
	ID       string `json:"id"`
	Language string `json:"language"`
}

// ListReports returns every safety report with anonymous reporters redacted
func (h *SafetyHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.SafetyReports())
}

// SubmitReport files a new report. Analysis, when configured, runs in the background.
func (h *SafetyHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req session.ReportInput
	if !decode(w, r, &req) {
		return
	}

	report, err := sess.SubmitSafetyReport(r.Context(), req)
	if err != nil {
		fail(w, "submit safety report", err)
		return
	}

	log.Printf("✅ Safety report %s filed (%s, %s)", report.ID, report.Type, report.Severity)
	writeJSON(w, http.StatusCreated, report)
}

func (h *SafetyHandler) AnalyzeReport(w http.ResponseWriter, r *http.Request) {
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

	report, err := sess.AnalyzeReport(r.Context(), req.ID)
	if err != nil {
		fail(w, "analyze safety report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *SafetyHandler) TranslateReport(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req TranslateRequest
	if !decode(w, r, &req) {
		return
	}

	report, err := sess.TranslateReport(r.Context(), req.ID, req.Language)
	if err != nil {
		fail(w, "translate safety report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *SafetyHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ReportStatusRequest
	if !decode(w, r, &req) {
		return
	}

	report, err := sess.SetReportStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		fail(w, "update safety report", err)
		return
	}

	log.Printf("✅ Safety report %s marked %s by %s", report.ID, report.Status, sess.User().Username)
	writeJSON(w, http.StatusOK, report)
}

// ExportReports exports safety reports to CSV
func (h *SafetyHandler) ExportReports(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	reports, err := sess.ExportSafetyReports(r.Context())
	if err != nil {
		fail(w, "export safety reports", err)
		return
	}

	// Set headers for CSV download
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("safety_reports_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Report ID",
		"Type",
		"Severity",
		"Status",
		"Reporter",
		"Created At",
		"Description",
		"AI Analysis",
	}
	if err := writer.Write(header); err != nil {
		log.Printf("❌ Failed to write CSV header: %v", err)
		return
	}

	for _, report := range reports {
		reporter := report.ReporterName
		if reporter == "" {
			reporter = report.ReporterID
		}
		row := []string{
			report.ID,
			string(report.Type),
			string(report.Severity),
			string(report.Status),
			reporter,
			report.CreatedAt.Format(time.RFC3339),
			strings.TrimSpace(report.Description),
			report.AIAnalysis,
		}
		if err := writer.Write(row); err != nil {
			log.Printf("❌ Failed to write CSV row: %v", err)
			return
		}
	}

	log.Printf("📊 CSV export by %s: %d safety reports", sess.User().Username, len(reports))
}
