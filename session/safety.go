package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/analysis"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

// ReportInput is a new safety report as filed by a user.
type ReportInput struct {
	Type        models.ReportType `json:"type"`
	Description string            `json:"description"`
	Severity    models.Severity   `json:"severity"`
	Anonymous   bool              `json:"anonymous"`
	ImageURLs   []string          `json:"image_urls,omitempty"`
}

// SafetyReports returns every report, newest first, with anonymous reporters redacted.
func (s *Session) SafetyReports() []models.SafetyReport {
	rows := s.mirror.Rows(models.TableSafetyReports)
	reports := make([]models.SafetyReport, 0, len(rows))
	for _, r := range rows {
		reports = append(reports, db.DecodeSafetyReport(r))
	}
	return s.Engine().FilterReports(reports)
}

func (s *Session) report(id string) (models.SafetyReport, error) {
	row, ok := s.mirror.Get(models.TableSafetyReports, id)
	if !ok {
		return models.SafetyReport{}, fmt.Errorf("safety report %s: %w", id, ErrNotFound)
	}
	return db.DecodeSafetyReport(row), nil
}

// SubmitSafetyReport files a report. AI analysis runs afterwards in the
// background and is written back only if it succeeds.
func (s *Session) SubmitSafetyReport(ctx context.Context, in ReportInput) (models.SafetyReport, error) {
	user, engine := s.actor()

	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return models.SafetyReport{}, fmt.Errorf("description is required: %w", ErrInvalid)
	}
	if !in.Type.Valid() {
		return models.SafetyReport{}, fmt.Errorf("unknown report type %q: %w", in.Type, ErrInvalid)
	}
	if !in.Severity.Valid() {
		return models.SafetyReport{}, fmt.Errorf("unknown severity %q: %w", in.Severity, ErrInvalid)
	}

	report := models.SafetyReport{
		ID:          uuid.NewString(),
		ReporterID:  user.ID,
		Type:        in.Type,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      models.ReportOpen,
		ImageURLs:   in.ImageURLs,
		CreatedAt:   time.Now().UTC(),
	}
	if in.Anonymous {
		report.ReporterID = models.AnonymousReporter
	}

	// the anonymous row carries no actor, so remember it as ours
	s.mu.Lock()
	s.ownReports[report.ID] = true
	s.mu.Unlock()

	row, err := s.write(ctx, models.TableSafetyReports, db.Mutation{Op: models.OpInsert, Payload: db.SafetyReportRow(report)})
	if err != nil {
		s.mu.Lock()
		delete(s.ownReports, report.ID)
		s.mu.Unlock()
		return models.SafetyReport{}, err
	}

	if _, disabled := s.analyzer.(analysis.Disabled); !disabled {
		go s.enrichReport(report.ID, report.Description)
	}

	return engine.RedactReport(db.DecodeSafetyReport(row)), nil
}

func (s *Session) enrichReport(id, description string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AITimeout)
	defer cancel()

	if _, err := s.applyAnalysis(ctx, id, description); err != nil {
		log.Printf("⚠️  No analysis for safety report %s: %v", id, err)
	}
}

func (s *Session) applyAnalysis(ctx context.Context, id, description string) (models.SafetyReport, error) {
	res, err := s.analyzer.AnalyzeSafetyReport(ctx, description)
	if err != nil {
		return models.SafetyReport{}, err
	}

	withAnalysis := db.SafetyReportRow(models.SafetyReport{AIAnalysis: res.Summary, Entities: &res.Entities})
	fields := models.Row{
		"ai_analysis": withAnalysis["ai_analysis"],
		"entities":    withAnalysis["entities"],
	}
	if _, err := s.write(ctx, models.TableSafetyReports, db.Mutation{Op: models.OpUpdate, ID: id, Payload: fields}); err != nil {
		return models.SafetyReport{}, err
	}
	return s.report(id)
}

// AnalyzeReport reruns AI analysis on demand.
func (s *Session) AnalyzeReport(ctx context.Context, id string) (models.SafetyReport, error) {
	engine := s.Engine()
	if !engine.CanProgressReport() {
		return models.SafetyReport{}, visibility.ErrForbidden
	}
	report, err := s.report(id)
	if err != nil {
		return models.SafetyReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()
	analyzed, err := s.applyAnalysis(ctx, report.ID, report.Description)
	if err != nil {
		return models.SafetyReport{}, err
	}
	return engine.RedactReport(analyzed), nil
}

// TranslateReport stores a translation of the report description.
func (s *Session) TranslateReport(ctx context.Context, id, language string) (models.SafetyReport, error) {
	engine := s.Engine()
	report, err := s.report(id)
	if err != nil {
		return models.SafetyReport{}, err
	}
	if language == "" {
		language = "English"
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()
	text, err := s.analyzer.Translate(ctx, report.Description, language)
	if err != nil {
		return models.SafetyReport{}, err
	}

	if _, err := s.write(ctx, models.TableSafetyReports, db.Mutation{Op: models.OpUpdate, ID: id, Payload: models.Row{"translation": text}}); err != nil {
		return models.SafetyReport{}, err
	}
	report.Translation = text
	return engine.RedactReport(report), nil
}

// SetReportStatus moves a report between open, investigating and resolved in any direction.
func (s *Session) SetReportStatus(ctx context.Context, id string, status models.ReportStatus) (models.SafetyReport, error) {
	user, engine := s.actor()
	if !engine.CanProgressReport() {
		return models.SafetyReport{}, visibility.ErrForbidden
	}
	if !status.Valid() {
		return models.SafetyReport{}, fmt.Errorf("unknown report status %q: %w", status, ErrInvalid)
	}
	report, err := s.report(id)
	if err != nil {
		return models.SafetyReport{}, err
	}

	if _, err := s.write(ctx, models.TableSafetyReports, db.Mutation{
		Op:      models.OpUpdate,
		ID:      id,
		Payload: models.Row{"status": string(status), "updated_by": user.ID},
	}); err != nil {
		return models.SafetyReport{}, err
	}
	report.Status = status
	return engine.RedactReport(report), nil
}

// ExportSafetyReports returns the redacted reports for an export and records
// the export in the audit trail.
func (s *Session) ExportSafetyReports(ctx context.Context) ([]models.SafetyReport, error) {
	if !s.Engine().CanProgressReport() {
		return nil, visibility.ErrForbidden
	}
	reports := s.SafetyReports()
	s.audit(ctx, "EXPORT_SAFETY_REPORTS", fmt.Sprintf("Exported %d safety reports", len(reports)))
	return reports, nil
}
