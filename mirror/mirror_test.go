package mirror

import (
	"reflect"
	"testing"
	"time"

	"github.com/mmonsif/aeroconnect/models"
)

func ids(rows []models.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID()
	}
	return out
}

func TestInsertIsIdempotent(t *testing.T) {
	m := New()
	ev := models.ChangeEvent{Table: models.TableTasks, Op: models.OpInsert, Row: models.Row{"id": "t1", "title": "Fuel stand 4"}}

	if _, out := m.ApplyEvent(ev); out != Inserted {
		t.Fatalf("first insert outcome = %v", out)
	}
	before := m.Rows(models.TableTasks)
	if _, out := m.ApplyEvent(ev); out != Duplicate {
		t.Fatalf("second insert outcome = %v", out)
	}
	if got := m.Rows(models.TableTasks); !reflect.DeepEqual(got, before) {
		t.Fatalf("duplicate insert changed the mirror: %v -> %v", before, got)
	}
	if m.Len(models.TableTasks) != 1 {
		t.Fatalf("len = %d, want 1", m.Len(models.TableTasks))
	}
}

func TestLateInsertAfterUpdateKeepsNewerFields(t *testing.T) {
	m := New()
	m.ApplyEvent(models.ChangeEvent{Table: models.TableTasks, Op: models.OpUpdate, Row: models.Row{"id": "t1", "status": "completed"}})

	_, out := m.ApplyEvent(models.ChangeEvent{Table: models.TableTasks, Op: models.OpInsert, Row: models.Row{"id": "t1", "status": "pending", "title": "Tow A320"}})
	if out != Merged {
		t.Fatalf("outcome = %v, want merged", out)
	}

	row, ok := m.Get(models.TableTasks, "t1")
	if !ok {
		t.Fatal("row missing")
	}
	if row.String("status") != "completed" {
		t.Errorf("status = %q, late insert must not overwrite", row.String("status"))
	}
	if row.String("title") != "Tow A320" {
		t.Errorf("title = %q, missing fields should be filled", row.String("title"))
	}
}

func TestReplayedInsertReplacesStaleRecord(t *testing.T) {
	m := New()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "t1", "status": "pending", "title": "Tow A320"}})

	replay := models.ChangeEvent{Table: models.TableTasks, Op: models.OpInsert, Initial: true, Row: models.Row{"id": "t1", "status": "completed", "title": "Tow A320"}}
	prev, out := m.ApplyEvent(replay)
	if out != Updated {
		t.Fatalf("outcome = %v, want updated", out)
	}
	if prev.String("status") != "pending" {
		t.Errorf("previous status = %q", prev.String("status"))
	}
	if row, _ := m.Get(models.TableTasks, "t1"); row.String("status") != "completed" {
		t.Errorf("status = %q, replayed row must win", row.String("status"))
	}
	if _, out := m.ApplyEvent(replay); out != Duplicate {
		t.Errorf("identical replay outcome = %v, want duplicate", out)
	}
}

func TestPruneDropsRowsMissingFromReplay(t *testing.T) {
	m := New()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "t3"}, {"id": "t2"}, {"id": "t1"}})

	dropped := m.Prune(models.TableTasks, []string{"t3", "t1"})
	if got := ids(dropped); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Fatalf("dropped = %v", got)
	}
	if got := ids(m.Rows(models.TableTasks)); !reflect.DeepEqual(got, []string{"t3", "t1"}) {
		t.Fatalf("rows = %v", got)
	}
	if dropped := m.Prune(models.TableForumPosts, nil); len(dropped) != 0 {
		t.Fatalf("prune of an empty table dropped %v", dropped)
	}
}

func TestUpdateForUnknownKeyUpserts(t *testing.T) {
	m := New()
	_, out := m.ApplyEvent(models.ChangeEvent{Table: models.TableLeaveRequests, Op: models.OpUpdate, Row: models.Row{"id": "l1", "status": "approved"}})
	if out != Upserted {
		t.Fatalf("outcome = %v", out)
	}
	if _, ok := m.Get(models.TableLeaveRequests, "l1"); !ok {
		t.Fatal("update for unknown key was not stored")
	}
}

func TestUpdateMergesPayload(t *testing.T) {
	m := New()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "t1", "title": "Stand 7", "status": "pending"}})

	prev, out := m.ApplyEvent(models.ChangeEvent{Table: models.TableTasks, Op: models.OpUpdate, Row: models.Row{"id": "t1", "status": "in_progress"}})
	if out != Updated {
		t.Fatalf("outcome = %v", out)
	}
	if prev.String("status") != "pending" {
		t.Errorf("prev status = %q", prev.String("status"))
	}
	row, _ := m.Get(models.TableTasks, "t1")
	if row.String("status") != "in_progress" || row.String("title") != "Stand 7" {
		t.Errorf("merged row = %v", row)
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	m := New()
	if _, out := m.ApplyEvent(models.ChangeEvent{Table: models.TableDocuments, Op: models.OpDelete, Row: models.Row{"id": "nope"}}); out != Ignored {
		t.Fatalf("outcome = %v", out)
	}

	m.ReplaceAll(models.TableDocuments, []models.Row{{"id": "d1"}})
	if _, out := m.ApplyEvent(models.ChangeEvent{Table: models.TableDocuments, Op: models.OpDelete, Row: models.Row{"id": "d1"}}); out != Removed {
		t.Fatalf("outcome = %v", out)
	}
	if m.Len(models.TableDocuments) != 0 {
		t.Fatal("row not removed")
	}
}

func TestMalformedEventsDropped(t *testing.T) {
	m := New()
	events := []models.ChangeEvent{
		{Table: models.TableTasks, Op: models.OpInsert, Row: models.Row{"title": "no id"}},
		{Table: models.TableTasks, Op: "truncate", Row: models.Row{"id": "t1"}},
		{Table: models.TableTasks, Op: models.OpInsert, Row: nil},
	}
	for _, ev := range events {
		if _, out := m.ApplyEvent(ev); out != Ignored {
			t.Errorf("event %+v outcome = %v", ev, out)
		}
	}
	if m.Len(models.TableTasks) != 0 {
		t.Fatal("malformed events reached the mirror")
	}
}

func TestOrderingPerTable(t *testing.T) {
	m := New()
	now := time.Now()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "old", "created_at": now.Add(-time.Hour)}})
	m.ApplyEvent(models.ChangeEvent{Table: models.TableTasks, Op: models.OpInsert, Row: models.Row{"id": "new", "created_at": now}})
	if got := ids(m.Rows(models.TableTasks)); !reflect.DeepEqual(got, []string{"new", "old"}) {
		t.Errorf("tasks order = %v", got)
	}

	m.ReplaceAll(models.TableMessages, []models.Row{{"id": "m1"}})
	m.ApplyEvent(models.ChangeEvent{Table: models.TableMessages, Op: models.OpInsert, Row: models.Row{"id": "m2"}})
	if got := ids(m.Rows(models.TableMessages)); !reflect.DeepEqual(got, []string{"m1", "m2"}) {
		t.Errorf("messages order = %v", got)
	}
}

func TestRowsReturnCopies(t *testing.T) {
	m := New()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "t1", "title": "a"}})
	rows := m.Rows(models.TableTasks)
	rows[0]["title"] = "mutated"
	if row, _ := m.Get(models.TableTasks, "t1"); row.String("title") != "a" {
		t.Fatal("caller mutation leaked into the mirror")
	}
}

func TestRemoveAndRestoreKeepsPosition(t *testing.T) {
	m := New()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "a"}, {"id": "b"}, {"id": "c"}})

	removal, ok := m.Remove(models.TableTasks, "b")
	if !ok {
		t.Fatal("Remove returned false")
	}
	m.Restore(models.TableTasks, removal)
	if got := ids(m.Rows(models.TableTasks)); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("order after restore = %v", got)
	}
}

func TestPatchReturnsPrevious(t *testing.T) {
	m := New()
	m.ReplaceAll(models.TableTasks, []models.Row{{"id": "t1", "status": "pending"}})
	prev, ok := m.Patch(models.TableTasks, "t1", models.Row{"status": "blocked"})
	if !ok || prev.String("status") != "pending" {
		t.Fatalf("Patch prev = %v, %v", prev, ok)
	}
	m.Put(models.TableTasks, prev)
	if row, _ := m.Get(models.TableTasks, "t1"); row.String("status") != "pending" {
		t.Fatalf("rollback via Put failed: %v", row)
	}
}
