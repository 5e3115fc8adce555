package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := &trace.Trace{
		ID:        "exe-1",
		SessionID: "SES-1",
		Status:    trace.StatusFailure,
		StartedAt: time.Date(2024, 5, 14, 14, 30, 11, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
		Steps: []trace.Step{
			{Name: "ingest", Status: trace.StepCompleted, Output: map[string]any{"id": "99"}},
			{Name: "transform", Status: trace.StepFailed, Output: map[string]any{"error": "invalid mapping"}},
		},
	}

	if err := s.Save(ctx, "comp-1", tr); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, err := s.Get(ctx, "exe-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.CompanyID != "comp-1" {
		t.Errorf("CompanyID = %s", rec.CompanyID)
	}
	got := rec.Trace
	if got.Status != trace.StatusFailure || got.Duration != tr.Duration {
		t.Errorf("trace = %+v", got)
	}
	if len(got.Steps) != 2 || got.Steps[1].Name != "transform" {
		t.Errorf("steps = %+v", got.Steps)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListByCompany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 14, 14, 0, 0, 0, time.UTC)

	for i, companyID := range []string{"comp-1", "comp-2", "comp-1"} {
		tr := &trace.Trace{
			ID:        "exe-" + string(rune('a'+i)),
			SessionID: "SES",
			Status:    trace.StatusSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Save(ctx, companyID, tr); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	records, err := s.List(ctx, storage.ListOptions{CompanyID: "comp-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}
	if records[0].Trace.ID != "exe-c" {
		t.Errorf("List() not most-recent-first: first = %s", records[0].Trace.ID)
	}

	limited, err := s.List(ctx, storage.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(limit 1) returned %d records", len(limited))
	}
}
