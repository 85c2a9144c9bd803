package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/wgman/internal/history"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	sink, err := New("file:" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	down := history.Event{Type: history.EventDown, OccurredAt: base, Name: "office", Status: history.StatusOK}
	up := history.Event{Type: history.EventUp, OccurredAt: base.Add(time.Second), Name: "home", Status: history.StatusOK, Mock: true}
	failed := history.Event{
		Type:       history.EventUp,
		OccurredAt: base.Add(2 * time.Second),
		Name:       "cafe",
		Status:     history.StatusFailed,
		Error:      "wg-quick up cafe failed with status code 1",
	}
	for _, e := range []history.Event{down, up, failed} {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	got, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Name != "cafe" || got[0].Status != history.StatusFailed || got[0].Error == "" {
		t.Fatalf("newest event mismatch: %+v", got[0])
	}
	if got[1].Name != "home" || !got[1].Mock || got[1].Type != history.EventUp || got[1].Error != "" {
		t.Fatalf("second event mismatch: %+v", got[1])
	}
	if got[2].Name != "office" || got[2].Type != history.EventDown {
		t.Fatalf("oldest event mismatch: %+v", got[2])
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Send(context.Background(), history.Event{
		Type: history.EventUp, OccurredAt: time.Now(), Name: "a", Status: history.StatusOK,
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := sink.Recent(context.Background(), 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent: %v %v", got, err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestSQLiteSink_PrefixStripped(t *testing.T) {
	sink, err := New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = sink.Close()
}
