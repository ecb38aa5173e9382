package store

import (
	"testing"
	"time"
)

func TestPredictionRepository_CreateAndList(t *testing.T) {
	s := newTestStore(t)
	createSession(t, s, "session-1", time.Now())
	repo := s.Predictions()

	inputs := []*Prediction{
		{SessionID: "session-1", Seq: 5, Label: "Shaking Hand", Confidence: 0.81, KeyCode: "Space", FPS: 24.5},
		{SessionID: "session-1", Seq: 2, Label: "Swiping Left", Confidence: 0.93, KeyCode: "ArrowLeft", FPS: 22},
	}
	for _, p := range inputs {
		if err := repo.Create(p); err != nil {
			t.Fatalf("failed to create prediction: %v", err)
		}
		if p.ID == 0 {
			t.Error("ID should be set after create")
		}
		if p.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set after create")
		}
	}

	got, err := repo.ListBySession("session-1")
	if err != nil {
		t.Fatalf("failed to list predictions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(got))
	}

	// Ordered by sequence number
	if got[0].Seq != 2 || got[1].Seq != 5 {
		t.Errorf("seq order = %d, %d; want 2, 5", got[0].Seq, got[1].Seq)
	}
	if got[0].KeyCode != "ArrowLeft" || got[0].Label != "Swiping Left" || got[0].Confidence != 0.93 {
		t.Errorf("got %+v", got[0])
	}

	count, err := repo.CountBySession("session-1")
	if err != nil {
		t.Fatalf("CountBySession() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountBySession() = %d, want 2", count)
	}
}

func TestPredictionRepository_RequiresSession(t *testing.T) {
	s := newTestStore(t)

	err := s.Predictions().Create(&Prediction{SessionID: "missing", Seq: 1, Label: "Swiping Left", KeyCode: "ArrowLeft"})
	if err == nil {
		t.Error("expected foreign key error for unknown session")
	}
}

func TestPredictionRepository_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Predictions().ListBySession("nobody")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no predictions, got %d", len(got))
	}
}
