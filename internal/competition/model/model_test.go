package model

import (
	"testing"
	"time"

	"alchemy/internal/competition/status"
)

func TestNewStatusRecord(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d := status.Descriptor{
		ID:                 "c-1",
		DAO:                "alchemy",
		StartTime:          t0,
		SuggestionsEndTime: t0.Add(time.Hour),
		VotingStartTime:    t0.Add(2 * time.Hour),
		EndTime:            t0.Add(3 * time.Hour),
		TotalSubmissions:   2,
	}

	rec := NewStatusRecord(d, status.Derive(t0.Add(30*time.Minute), d))
	if rec.Kind != status.OpenForSubmissions || rec.Label != "Open for submissions" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.NextBoundary == nil || !rec.NextBoundary.Equal(d.SuggestionsEndTime) {
		t.Fatalf("expected countdown to suggestions end, got %v", rec.NextBoundary)
	}
	if !rec.Flags.Open {
		t.Fatalf("expected open flag")
	}

	rec = NewStatusRecord(d, status.Derive(t0.Add(4*time.Hour), d))
	if rec.NextBoundary != nil {
		t.Fatalf("ended competitions have no countdown")
	}
}
