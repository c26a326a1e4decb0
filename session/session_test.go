package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mmonsif/aeroconnect/analysis"
	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "Passw0rd1"

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type harness struct {
	store *db.MemoryStore
	blobs *db.MemoryBlobStore
	mgr   *Manager
}

func newHarness(t *testing.T, analyzer analysis.Analyzer, opts Options) *harness {
	t.Helper()
	store := db.NewMemoryStore()
	if err := db.Seed(context.Background(), store, seedPassword); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	blobs := db.NewMemoryBlobStore()
	mgr := NewManager(store, blobs, analyzer, opts)
	t.Cleanup(mgr.Shutdown)
	return &harness{store: store, blobs: blobs, mgr: mgr}
}

func (h *harness) login(t *testing.T, username string) *Session {
	t.Helper()
	user, err := Authenticate(context.Background(), h.store, username, seedPassword)
	if err != nil {
		t.Fatalf("Authenticate(%s): %v", username, err)
	}
	s, err := h.mgr.Start(context.Background(), user)
	if err != nil {
		t.Fatalf("Start(%s): %v", username, err)
	}
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartLoadsMirrorAndSubscribes(t *testing.T) {
	h := newHarness(t, nil, Options{})
	admin := h.login(t, "admin")

	if got := len(admin.Tasks()); got != 2 {
		t.Errorf("admin sees %d tasks, want 2", got)
	}
	if got := len(admin.Users()); got != len(db.SeedUsers)-1 {
		t.Errorf("Users() = %d, want %d without the broadcast account", got, len(db.SeedUsers)-1)
	}
	if got := h.store.Subscribers(); got != 1 {
		t.Errorf("subscribers = %d, want 1", got)
	}
}

func TestReloginReplacesSession(t *testing.T) {
	h := newHarness(t, nil, Options{})
	first := h.login(t, "ofathy")
	second := h.login(t, "ofathy")

	if !first.Closed() || second.Closed() {
		t.Fatalf("closed: first=%v second=%v", first.Closed(), second.Closed())
	}
	if h.mgr.Count() != 1 || h.store.Subscribers() != 1 {
		t.Fatalf("sessions=%d subscribers=%d, want 1 and 1", h.mgr.Count(), h.store.Subscribers())
	}
	if _, ok := h.mgr.Get(first.ID); ok {
		t.Fatal("replaced session still reachable")
	}
}

func TestConcurrentLoginsKeepOneSession(t *testing.T) {
	h := newHarness(t, nil, Options{})
	user, err := Authenticate(context.Background(), h.store, "ofathy", seedPassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	const logins = 8
	sessions := make([]*Session, logins)
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := h.mgr.Start(context.Background(), user)
			if err != nil {
				t.Errorf("Start: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	live := 0
	for _, s := range sessions {
		if s != nil && !s.Closed() {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("%d sessions left open, want 1", live)
	}
	if h.mgr.Count() != 1 || h.store.Subscribers() != 1 {
		t.Fatalf("sessions=%d subscribers=%d, want 1 and 1", h.mgr.Count(), h.store.Subscribers())
	}
}

func TestFeedReplayReconcilesMirror(t *testing.T) {
	h := newHarness(t, nil, Options{})
	admin := h.login(t, "admin")

	var current models.Row
	for _, row := range h.store.FetchAll(context.Background(), models.TableTasks) {
		if row.ID() == "task-seed-1" {
			current = row
		}
	}
	if current == nil {
		t.Fatal("seeded task missing")
	}
	current["status"] = string(models.TaskCompleted)

	// task-seed-1 changed and task-seed-2 was deleted after the full fetch
	h.store.Emit(models.ChangeEvent{Table: models.TableTasks, Op: models.OpInsert, Row: current, Initial: true})
	h.store.Emit(models.ChangeEvent{Table: models.TableTasks, Op: models.OpResync, Initial: true, Keys: []string{"task-seed-1"}})

	tasks := admin.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "task-seed-1" {
		t.Fatalf("tasks after replay = %+v", tasks)
	}
	if tasks[0].Status != models.TaskCompleted {
		t.Errorf("status after replay = %s, want completed", tasks[0].Status)
	}
	if n := len(admin.Notifications()); n != 0 {
		t.Errorf("replay raised %d notifications", n)
	}
}

func TestEndTearsDown(t *testing.T) {
	h := newHarness(t, nil, Options{})
	s := h.login(t, "ofathy")
	ch, _ := s.Listen()

	if !h.mgr.End(s.ID) {
		t.Fatal("End returned false for a live session")
	}
	if h.store.Subscribers() != 0 {
		t.Fatalf("subscription left open after End")
	}
	if _, open := <-ch; open {
		t.Fatal("listener channel still open after End")
	}
	if h.mgr.End(s.ID) {
		t.Fatal("End succeeded twice")
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	h := newHarness(t, nil, Options{IdleTimeout: time.Minute})
	h.login(t, "ofathy")

	if n := h.mgr.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh session swept")
	}
	if n := h.mgr.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("Sweep evicted %d sessions, want 1", n)
	}
	if h.store.Subscribers() != 0 {
		t.Fatal("evicted session kept its subscription")
	}
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	if _, err := Authenticate(ctx, h.store, "ofathy", "wrong-pass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := Authenticate(ctx, h.store, "nobody", seedPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}
	if _, err := Authenticate(ctx, h.store, "broadcast", seedPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("broadcast account: %v", err)
	}

	admin := h.login(t, "admin")
	if _, err := admin.SetUserStatus(ctx, "user-ops-staff", models.UserInactive); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if _, err := Authenticate(ctx, h.store, "ofathy", seedPassword); !errors.Is(err, ErrInactive) {
		t.Errorf("inactive user: %v", err)
	}
}

func TestTaskVisibilityAcrossSessions(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	manager := h.login(t, "rhaddad")
	omar := h.login(t, "ofathy")
	lina := h.login(t, "lsaleh")
	admin := h.login(t, "admin")

	task, err := manager.CreateTask(ctx, TaskInput{Title: "Pushback stand 7", AssignedTo: "Omar Fathy", Priority: models.PriorityCritical})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Department != "Operations" || task.Status != models.TaskPending {
		t.Fatalf("created task = %+v", task)
	}

	for _, c := range []struct {
		who  *Session
		want int
	}{{manager, 2}, {omar, 2}, {lina, 1}, {admin, 3}} {
		if got := len(c.who.Tasks()); got != c.want {
			t.Errorf("%s sees %d tasks, want %d", c.who.User().Username, got, c.want)
		}
	}

	notes := omar.Notifications()
	if len(notes) != 1 || notes[0].Severity != models.SeverityUrgent || notes[0].Kind != models.KindTask {
		t.Fatalf("assignee notifications = %+v", notes)
	}
	if toast, ok := omar.Toast(); !ok || toast.ID != notes[0].ID {
		t.Errorf("toast = %+v, %v", toast, ok)
	}
	if len(manager.Notifications()) != 0 || len(lina.Notifications()) != 0 {
		t.Error("creator or bystander notified")
	}
}

func TestTaskPermissions(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	omar := h.login(t, "ofathy")
	manager := h.login(t, "rhaddad")

	if _, err := omar.CreateTask(ctx, TaskInput{Title: "x"}); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff create: %v", err)
	}
	if _, err := manager.CreateTask(ctx, TaskInput{Title: "x", AssignedTo: "Lina Saleh"}); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("cross-department assignment: %v", err)
	}
	if err := omar.DeleteTask(ctx, "task-seed-1"); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff delete: %v", err)
	}
	if _, err := manager.SetTaskStatus(ctx, "task-seed-2", models.TaskCompleted); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("status on another department's task: %v", err)
	}
	if _, err := manager.SetTaskStatus(ctx, "missing", models.TaskCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("status on unknown task: %v", err)
	}
	if err := manager.DeleteTask(ctx, "task-seed-1"); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
	if len(omar.Tasks()) != 0 {
		t.Error("deleted task still mirrored for assignee")
	}
}

func TestSetTaskStatusRollsBack(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	omar := h.login(t, "ofathy")
	manager := h.login(t, "rhaddad")

	h.store.FailNext(db.ErrUnavailable)
	if _, err := omar.SetTaskStatus(ctx, "task-seed-1", models.TaskInProgress); !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("SetTaskStatus error = %v", err)
	}
	if got := omar.Tasks()[0].Status; got != models.TaskPending {
		t.Fatalf("status after failed write = %s, want pending", got)
	}

	if _, err := omar.SetTaskStatus(ctx, "task-seed-1", models.TaskInProgress); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	for _, s := range []*Session{omar, manager} {
		if got := s.Tasks()[0].Status; got != models.TaskInProgress {
			t.Errorf("%s sees status %s", s.User().Username, got)
		}
	}
	if len(omar.Notifications()) != 0 {
		t.Error("assignee notified of own status change")
	}
}

func TestManagerStatusChangeNotifiesAssignee(t *testing.T) {
	h := newHarness(t, nil, Options{})
	omar := h.login(t, "ofathy")
	manager := h.login(t, "rhaddad")

	if _, err := manager.SetTaskStatus(context.Background(), "task-seed-1", models.TaskCompleted); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	notes := omar.Notifications()
	if len(notes) != 1 || notes[0].Kind != models.KindTask {
		t.Fatalf("notifications = %+v", notes)
	}
}

func TestOperationsManagerLeaveRoundTrip(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	lina := h.login(t, "lsaleh")
	manager := h.login(t, "rhaddad")
	supervisor := h.login(t, "knasser")

	req, err := lina.SubmitLeave(ctx, LeaveInput{Type: models.LeaveAnnual, StartDate: "2026-11-02", EndDate: "2026-11-05", Reason: "Family visit"})
	if err != nil {
		t.Fatalf("SubmitLeave: %v", err)
	}

	if got := len(manager.LeaveRequests()); got != 1 {
		t.Fatalf("direct-report manager sees %d requests", got)
	}
	if got := len(manager.Notifications()); got != 1 {
		t.Errorf("manager notifications = %d, want 1", got)
	}
	if len(supervisor.LeaveRequests()) != 0 || len(supervisor.Notifications()) != 0 {
		t.Error("supervisor outside the department sees the request")
	}

	_, _, err = manager.ActOnLeave(ctx, req.ID, visibility.LeaveDecision{
		Action:             visibility.LeaveSuggest,
		Suggestion:         "Week after is quieter",
		SuggestedStartDate: "2026-11-09",
		SuggestedEndDate:   "2026-11-12",
	})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if notes := lina.Notifications(); len(notes) != 1 || notes[0].Kind != models.KindLeave || notes[0].Severity != models.SeverityUrgent {
		t.Fatalf("owner notifications = %+v", notes)
	}

	if _, _, err := manager.ActOnLeave(ctx, req.ID, visibility.LeaveDecision{Action: visibility.LeaveAccept}); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("manager accepting own counter-offer: %v", err)
	}

	accepted, removed, err := lina.ActOnLeave(ctx, req.ID, visibility.LeaveDecision{Action: visibility.LeaveAccept})
	if err != nil || removed {
		t.Fatalf("accept: removed=%v err=%v", removed, err)
	}
	if accepted.Status != models.LeaveApproved || accepted.StartDate != "2026-11-09" || accepted.EndDate != "2026-11-12" {
		t.Fatalf("accepted = %+v", accepted)
	}

	seen := manager.LeaveRequests()[0]
	if seen.Status != models.LeaveApproved || seen.StartDate != "2026-11-09" || seen.Suggestion != "" || seen.SuggestedStartDate != "" {
		t.Fatalf("manager view after accept = %+v", seen)
	}

	if _, _, err := manager.ActOnLeave(ctx, req.ID, visibility.LeaveDecision{Action: visibility.LeaveReject}); !errors.Is(err, visibility.ErrInvalidTransition) {
		t.Errorf("reject after approval: %v", err)
	}
}

func TestWithdrawCounterOfferRemovesRequest(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	omar := h.login(t, "ofathy")
	manager := h.login(t, "rhaddad")

	req, err := omar.SubmitLeave(ctx, LeaveInput{Type: models.LeaveSick, StartDate: "2026-12-01", EndDate: "2026-12-02"})
	if err != nil {
		t.Fatalf("SubmitLeave: %v", err)
	}
	if _, _, err := manager.ActOnLeave(ctx, req.ID, visibility.LeaveDecision{Action: visibility.LeaveSuggest, SuggestedStartDate: "2026-12-03", SuggestedEndDate: "2026-12-04"}); err != nil {
		t.Fatalf("suggest: %v", err)
	}

	_, removed, err := omar.ActOnLeave(ctx, req.ID, visibility.LeaveDecision{Action: visibility.LeaveWithdraw})
	if err != nil || !removed {
		t.Fatalf("withdraw: removed=%v err=%v", removed, err)
	}

	rows, err := h.store.Query(ctx, models.TableLeaveRequests, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("stored requests after withdraw = %d (%v)", len(rows), err)
	}
	if len(manager.LeaveRequests()) != 0 || len(omar.LeaveRequests()) != 0 {
		t.Fatal("withdrawn request still mirrored")
	}
}

func TestSubmitLeaveValidatesDates(t *testing.T) {
	h := newHarness(t, nil, Options{})
	omar := h.login(t, "ofathy")
	_, err := omar.SubmitLeave(context.Background(), LeaveInput{Type: models.LeaveAnnual, StartDate: "2026-11-05", EndDate: "2026-11-02"})
	if !errors.Is(err, visibility.ErrInvalidDates) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnonymousSafetyReport(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	manager := h.login(t, "rhaddad")
	safety := h.login(t, "yadel")
	omar := h.login(t, "ofathy")

	report, err := manager.SubmitSafetyReport(ctx, ReportInput{Type: models.ReportNearMiss, Description: "Fuel bowser reversed without a banksman", Severity: models.SeverityHigh, Anonymous: true})
	if err != nil {
		t.Fatalf("SubmitSafetyReport: %v", err)
	}
	if report.ReporterID != models.AnonymousReporter || report.ReporterName != "" {
		t.Fatalf("returned report exposes reporter: %+v", report)
	}

	rows, _ := h.store.Query(ctx, models.TableSafetyReports, nil)
	if len(rows) != 1 || rows[0].String("reporter_id") != models.AnonymousReporter {
		t.Fatalf("stored reporter = %v", rows)
	}

	for _, s := range []*Session{manager, safety, omar} {
		got := s.SafetyReports()
		if len(got) != 1 || got[0].ReporterID != models.AnonymousReporter || got[0].ReporterName != "" {
			t.Errorf("%s view = %+v", s.User().Username, got)
		}
	}

	if len(manager.Notifications()) != 0 {
		t.Error("anonymous reporter notified of own report")
	}
	notes := safety.Notifications()
	if len(notes) != 1 || notes[0].Severity != models.SeverityUrgent {
		t.Errorf("safety manager notifications = %+v", notes)
	}
	if len(omar.Notifications()) != 0 {
		t.Error("staff notified of safety report")
	}
}

func TestIdentifiedReportResolvesReporter(t *testing.T) {
	h := newHarness(t, nil, Options{})
	omar := h.login(t, "ofathy")
	if _, err := omar.SubmitSafetyReport(context.Background(), ReportInput{Type: models.ReportHazard, Description: "Loose FOD near taxiway", Severity: models.SeverityLow}); err != nil {
		t.Fatalf("SubmitSafetyReport: %v", err)
	}
	if got := omar.SafetyReports()[0].ReporterName; got != "Omar Fathy" {
		t.Fatalf("reporter name = %q", got)
	}
}

type stubAnalyzer struct {
	analysis.Disabled
	result *analysis.Result
}

func (a stubAnalyzer) AnalyzeSafetyReport(context.Context, string) (*analysis.Result, error) {
	return a.result, nil
}

func (a stubAnalyzer) Briefing(_ context.Context, tasks []models.Task) (string, error) {
	return tasks[0].Title, nil
}

func TestReportAnalysisWrittenInBackground(t *testing.T) {
	stub := stubAnalyzer{result: &analysis.Result{
		Summary:  "Vehicle reversing hazard",
		Entities: models.ReportEntities{Locations: []string{"Stand 4"}, Equipment: []string{"fuel bowser"}},
	}}
	h := newHarness(t, stub, Options{})
	omar := h.login(t, "ofathy")

	report, err := omar.SubmitSafetyReport(context.Background(), ReportInput{Type: models.ReportIncident, Description: "Bowser reversed", Severity: models.SeverityMedium})
	if err != nil {
		t.Fatalf("SubmitSafetyReport: %v", err)
	}
	waitFor(t, "analysis", func() bool {
		got, err := omar.report(report.ID)
		return err == nil && got.AIAnalysis != ""
	})

	got, _ := omar.report(report.ID)
	if got.AIAnalysis != "Vehicle reversing hazard" || got.Entities == nil || got.Entities.Locations[0] != "Stand 4" {
		t.Fatalf("analyzed report = %+v", got)
	}
}

func TestReportStatusRequiresRole(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	omar := h.login(t, "ofathy")
	safety := h.login(t, "yadel")

	report, err := omar.SubmitSafetyReport(ctx, ReportInput{Type: models.ReportEquipment, Description: "GPU cable frayed", Severity: models.SeverityMedium})
	if err != nil {
		t.Fatalf("SubmitSafetyReport: %v", err)
	}
	if _, err := omar.SetReportStatus(ctx, report.ID, models.ReportResolved); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff progression: %v", err)
	}
	for _, st := range []models.ReportStatus{models.ReportResolved, models.ReportOpen} {
		if _, err := safety.SetReportStatus(ctx, report.ID, st); err != nil {
			t.Fatalf("SetReportStatus(%s): %v", st, err)
		}
	}
	if got := omar.SafetyReports()[0].Status; got != models.ReportOpen {
		t.Errorf("reopened status = %s", got)
	}
}

func TestBroadcastFanOut(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	manager := h.login(t, "rhaddad")
	receivers := []*Session{h.login(t, "ofathy"), h.login(t, "lsaleh"), h.login(t, "admin")}

	msg, err := manager.Broadcast(ctx, "Runway 09 closed for inspection")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if !msg.IsBroadcast() {
		t.Fatalf("message recipient = %s", msg.RecipientID)
	}

	for _, s := range receivers {
		notes := s.Notifications()
		if len(notes) != 1 || notes[0].Kind != models.KindBroadcast || notes[0].Severity != models.SeverityUrgent {
			t.Errorf("%s notifications = %+v", s.User().Username, notes)
		}
		if got := len(s.Conversation(models.BroadcastID)); got != 1 {
			t.Errorf("%s broadcast channel has %d messages", s.User().Username, got)
		}
	}
	if len(manager.Notifications()) != 0 {
		t.Error("sender notified of own broadcast")
	}

	if _, err := receivers[0].Broadcast(ctx, "hello all"); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff broadcast: %v", err)
	}
	if _, err := h.login(t, "knasser").Broadcast(ctx, "hello all"); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("supervisor broadcast: %v", err)
	}
}

func TestBroadcastWithoutAccount(t *testing.T) {
	store := db.NewMemoryStore()
	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := models.User{ID: "user-admin", Name: "Portal Admin", Username: "admin", PasswordHash: hash, Role: models.RoleAdmin, Status: models.UserActive}
	if _, err := store.Mutate(context.Background(), models.TableUsers, db.Mutation{Op: models.OpInsert, Payload: db.UserRow(admin)}); err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	mgr := NewManager(store, db.NewMemoryBlobStore(), nil, Options{})
	t.Cleanup(mgr.Shutdown)

	s, err := mgr.Start(context.Background(), admin)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = s.Broadcast(context.Background(), "Fire drill at 14:00")
	if !errors.Is(err, ErrBroadcastAccountMissing) || !errors.Is(err, db.ErrConstraint) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Messages()) != 0 {
		t.Fatal("rejected broadcast left in mirror")
	}
}

func TestSendMessageRollsBack(t *testing.T) {
	h := newHarness(t, nil, Options{})
	omar := h.login(t, "ofathy")

	h.store.FailNext(db.ErrUnavailable)
	if _, err := omar.SendMessage(context.Background(), "user-ops-manager", "On my way"); !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if len(omar.Messages()) != 0 {
		t.Fatal("failed message left in mirror")
	}
}

func TestDirectMessagesAndReadState(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	admin := h.login(t, "admin")
	omar := h.login(t, "ofathy")
	lina := h.login(t, "lsaleh")

	for _, text := range []string{"Report to gate 3", "Bring the radio"} {
		if _, err := admin.SendMessage(ctx, "user-ops-staff", text); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}
	if got := omar.UnreadMessageCount(); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
	if got := len(omar.Conversation("user-admin")); got != 2 {
		t.Fatalf("conversation length = %d", got)
	}
	if got := len(lina.Messages()); got != 0 {
		t.Fatalf("bystander sees %d direct messages", got)
	}
	conv := admin.Conversation("user-ops-staff")
	if conv[0].Text != "Report to gate 3" {
		t.Fatalf("conversation not oldest first: %+v", conv)
	}

	if err := omar.MarkConversationRead(ctx, "user-admin"); err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if got := omar.UnreadMessageCount(); got != 0 {
		t.Fatalf("unread after read = %d", got)
	}
}

func TestForumReplyNotifiesAuthor(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	omar := h.login(t, "ofathy")
	lina := h.login(t, "lsaleh")

	post, err := omar.CreatePost(ctx, "De-icing schedule", "Who covers the night shift?")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if len(lina.Notifications()) != 1 {
		t.Fatalf("new post did not notify other users")
	}
	if _, err := lina.Reply(ctx, post.ID, "I can take Tuesday"); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	notes := omar.Notifications()
	if len(notes) != 1 || notes[0].Kind != models.KindForum {
		t.Fatalf("author notifications = %+v", notes)
	}
	posts := omar.ForumPosts()
	if len(posts) != 1 || len(posts[0].Replies) != 1 {
		t.Fatalf("posts = %+v", posts)
	}

	if err := omar.DeletePost(ctx, post.ID); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff delete: %v", err)
	}
	manager := h.login(t, "rhaddad")
	if err := manager.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if len(omar.ForumPosts()) != 0 {
		t.Fatal("post survived moderation")
	}
	if rows, _ := h.store.Query(ctx, models.TableForumReplies, nil); len(rows) != 0 {
		t.Fatalf("replies left behind: %d", len(rows))
	}
}

func TestDocumentUpload(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	omar := h.login(t, "ofathy")
	manager := h.login(t, "rhaddad")

	h.store.FailNext(db.ErrUnavailable)
	if _, err := omar.UploadDocument(ctx, "sop.pdf", "application/pdf", []byte("%PDF")); err == nil {
		t.Fatal("upload succeeded despite row failure")
	}
	if h.blobs.Len() != 0 {
		t.Fatal("orphaned blob after failed row write")
	}

	doc, err := omar.UploadDocument(ctx, "sop.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if doc.Type != "PDF" || doc.UploadedBy != "Omar Fathy" || !h.blobs.Has(doc.FilePath) {
		t.Fatalf("doc = %+v", doc)
	}
	if len(omar.Notifications()) != 0 || len(manager.Notifications()) != 1 {
		t.Error("document notifications wrong")
	}

	if err := omar.DeleteDocument(ctx, doc.ID); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff delete: %v", err)
	}
	if err := manager.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if h.blobs.Has(doc.FilePath) || len(omar.Documents()) != 0 {
		t.Fatal("document survived deletion")
	}
}

func TestAdminChangesRefreshTargetSession(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	admin := h.login(t, "admin")
	omar := h.login(t, "ofathy")

	if _, err := admin.UpdateUser(ctx, "user-ops-staff", UserInput{Role: models.RoleSupervisor}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got := omar.User().Role; got != models.RoleSupervisor {
		t.Fatalf("session role = %s after promotion", got)
	}
	if !omar.Engine().CanCreateTask() {
		t.Fatal("engine not rebuilt after promotion")
	}

	if err := admin.ResetPassword(ctx, "user-ops-staff", "Temp0rary1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if !omar.User().MustChangePassword {
		t.Fatal("reset did not force a password change")
	}
	if err := omar.ChangePassword(ctx, "Temp0rary1", "N3wSecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if omar.User().MustChangePassword {
		t.Fatal("flag still set after change")
	}
	if _, err := Authenticate(ctx, h.store, "ofathy", "N3wSecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUserAdministration(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	admin := h.login(t, "admin")
	omar := h.login(t, "ofathy")

	if _, err := omar.CreateUser(ctx, UserInput{Name: "X", Username: "x", Password: "Passw0rd1", Role: models.RoleStaff}); !errors.Is(err, visibility.ErrForbidden) {
		t.Errorf("staff create user: %v", err)
	}
	if _, err := admin.CreateUser(ctx, UserInput{Name: "Dup", Username: "ofathy", Password: "Passw0rd1", Role: models.RoleStaff}); !errors.Is(err, db.ErrConstraint) {
		t.Errorf("duplicate username: %v", err)
	}
	if _, err := admin.CreateUser(ctx, UserInput{Name: "Weak", Username: "weak", Password: "short", Role: models.RoleStaff}); !errors.Is(err, auth.ErrWeakPassword) {
		t.Errorf("weak password: %v", err)
	}

	user, err := admin.CreateUser(ctx, UserInput{Name: "Sara Hamdi", Username: "shamdi", Password: "Passw0rd1", Role: models.RoleStaff, StaffID: "SEC-202", Department: "Security"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !user.MustChangePassword {
		t.Error("new user not forced to change password")
	}
	if _, err := admin.AssignManager(ctx, user.ID, "user-ops-staff"); !errors.Is(err, visibility.ErrInvalidManager) {
		t.Errorf("staff as manager: %v", err)
	}
	if _, err := admin.AssignManager(ctx, user.ID, "user-ops-manager"); err != nil {
		t.Fatalf("AssignManager: %v", err)
	}
	if u, _ := omar.dir.UserByID(user.ID); u.ManagerID != "user-ops-manager" {
		t.Errorf("manager id seen by other session = %q", u.ManagerID)
	}
	if err := admin.DeleteUser(ctx, "user-admin"); !errors.Is(err, ErrInvalid) {
		t.Errorf("self delete: %v", err)
	}
	if err := admin.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	logs, err := admin.AuditLogs(ctx)
	if err != nil || len(logs) != 3 {
		t.Fatalf("audit logs = %d (%v), want 3", len(logs), err)
	}
}

func TestNotificationListAndToast(t *testing.T) {
	h := newHarness(t, nil, Options{ToastTTL: 20 * time.Millisecond})
	ctx := context.Background()
	admin := h.login(t, "admin")
	omar := h.login(t, "ofathy")
	ch, cancel := omar.Listen()
	defer cancel()

	if _, err := admin.SendMessage(ctx, "user-ops-staff", "Ping"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	select {
	case n := <-ch:
		if n.Kind != models.KindMessage {
			t.Errorf("streamed %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("listener received nothing")
	}

	waitFor(t, "toast expiry", func() bool {
		_, ok := omar.Toast()
		return !ok
	})

	notes := omar.Notifications()
	if len(notes) != 1 || omar.UnreadNotifications() != 1 {
		t.Fatalf("notifications = %+v", notes)
	}
	if err := omar.MarkNotificationRead(notes[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if omar.UnreadNotifications() != 0 {
		t.Error("still unread")
	}
	if err := omar.DismissNotification(notes[0].ID); err != nil {
		t.Fatalf("DismissNotification: %v", err)
	}
	if len(omar.Notifications()) != 0 {
		t.Error("dismissed notification kept")
	}
	if err := omar.DismissNotification("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("dismiss missing: %v", err)
	}
}

func TestFeedToleratesReplayedAndMalformedEvents(t *testing.T) {
	h := newHarness(t, nil, Options{})
	omar := h.login(t, "ofathy")

	h.store.Emit(models.ChangeEvent{Table: models.TableTasks, Op: models.OpUpdate, Row: models.Row{"title": "no id"}})
	h.store.Emit(models.ChangeEvent{Table: models.TableTasks, Op: "upsert", Row: models.Row{"id": "task-seed-1"}})
	h.store.Emit(models.ChangeEvent{Table: models.TableTasks, Op: models.OpDelete, Row: models.Row{"id": "never-existed"}})

	seed, _ := h.store.Query(context.Background(), models.TableTasks, models.Row{"id": "task-seed-1"})
	h.store.Emit(models.ChangeEvent{Table: models.TableTasks, Op: models.OpInsert, Row: seed[0]})

	if got := len(omar.Tasks()); got != 1 {
		t.Fatalf("tasks = %d after noise", got)
	}
	if len(omar.Notifications()) != 0 {
		t.Fatal("noise raised notifications")
	}
}

func TestShiftBriefing(t *testing.T) {
	h := newHarness(t, stubAnalyzer{}, Options{})
	omar := h.login(t, "ofathy")
	got, err := omar.ShiftBriefing(context.Background())
	if err != nil || got != "Marshal stand 12 arrival" {
		t.Fatalf("briefing = %q, %v", got, err)
	}
}
