package state

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T, ttl time.Duration) Manager {
	t.Helper()
	m := NewMemoryManager(ttl)
	t.Cleanup(m.Close)
	return m
}

func TestBeginAndCollect(t *testing.T) {
	m := newTestManager(t, time.Minute)

	if m.InProgress(1) {
		t.Fatal("fresh manager should have no session")
	}

	m.Begin(1, "create_entry")
	m.SetField(1, "start_date", "2026-08-27")
	m.Advance(1, 1)

	sess, ok := m.Get(1)
	if !ok {
		t.Fatal("expected active session")
	}
	if sess.Flow != "create_entry" || sess.Step != 1 {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Fields["start_date"] != "2026-08-27" {
		t.Fatalf("field not stored: %+v", sess.Fields)
	}
}

func TestBeginReplacesPreviousFlow(t *testing.T) {
	m := newTestManager(t, time.Minute)

	m.Begin(1, "create_entry")
	m.SetField(1, "start_date", "2026-08-27")
	m.Begin(1, "registration")

	sess, ok := m.Get(1)
	if !ok {
		t.Fatal("expected active session")
	}
	if sess.Flow != "registration" || sess.Step != 0 {
		t.Fatalf("unexpected session after restart: %+v", sess)
	}
	if len(sess.Fields) != 0 {
		t.Fatalf("fields should be reset, got %+v", sess.Fields)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	m := newTestManager(t, time.Minute)

	m.Begin(1, "create_entry")
	m.SetField(1, "project", "Alpha")

	sess, _ := m.Get(1)
	sess.Fields["project"] = "mutated"

	again, _ := m.Get(1)
	if again.Fields["project"] != "Alpha" {
		t.Fatalf("snapshot mutation leaked into manager: %+v", again.Fields)
	}
}

func TestLazyExpiry(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond)

	m.Begin(1, "create_entry")
	time.Sleep(30 * time.Millisecond)

	if m.InProgress(1) {
		t.Fatal("session should have expired")
	}
	if _, ok := m.Get(1); ok {
		t.Fatal("expired session still returned")
	}
}

func TestClear(t *testing.T) {
	m := newTestManager(t, time.Minute)

	m.Begin(7, "start_entry")
	m.Clear(7)

	if m.InProgress(7) {
		t.Fatal("cleared session still active")
	}
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	m := newTestManager(t, time.Minute)

	m.Begin(1, "create_entry")
	m.Begin(2, "registration")
	m.SetField(1, "start_date", "2026-08-27")

	s2, _ := m.Get(2)
	if s2.Flow != "registration" || len(s2.Fields) != 0 {
		t.Fatalf("cross-user leak: %+v", s2)
	}
}
