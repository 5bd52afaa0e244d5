package session_test

import (
	"fmt"
	"testing"

	"github.com/shpitdev/company-revenue-lookup/internal/session"
)

func ids(entries []session.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestHistory_MostRecentFirstDeduped(t *testing.T) {
	t.Parallel()

	h, err := session.NewHistory(0)
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	for _, id := range []string{"552100554", "732829320", "552100554", " ", "356000000"} {
		h.Record(session.Entry{ID: id})
	}
	got := ids(h.Recent())
	want := []string{"356000000", "552100554", "732829320"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected history: %v, want %v", got, want)
	}
}

func TestHistory_CapsAtEight(t *testing.T) {
	t.Parallel()

	h, err := session.NewHistory(session.DefaultHistorySize)
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	for i := 0; i < 12; i++ {
		h.Record(session.Entry{ID: fmt.Sprintf("%09d", i)})
	}
	got := ids(h.Recent())
	if len(got) != 8 || got[0] != "000000011" || got[7] != "000000004" {
		t.Fatalf("unexpected history: %v", got)
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	t.Parallel()

	s, err := session.NewStore(2, 3)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.Record("a", session.Entry{ID: "552100554"})
	s.Record("b", session.Entry{ID: "732829320"})
	s.Record("", session.Entry{ID: "356000000"})

	if got := ids(s.Recent("a")); len(got) != 0 {
		t.Fatalf("expected session a to be evicted, got %v", got)
	}
	if got := ids(s.Recent("b")); len(got) != 1 || got[0] != "732829320" {
		t.Fatalf("unexpected session b: %v", got)
	}
	anon := s.Recent(session.Anonymous)
	if len(anon) != 1 || anon[0].ID != "356000000" || anon[0].At.IsZero() {
		t.Fatalf("unexpected anonymous session: %#v", anon)
	}
	if got := s.Recent("unknown"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v", got)
	}
}
