package store

import (
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("enabled"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
	if !repo.GetBool("enabled", true) {
		t.Error("GetBool() should return the default for a missing key")
	}

	if err := repo.SetBool("enabled", false); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if repo.GetBool("enabled", true) {
		t.Error("GetBool() = true after SetBool(false)")
	}

	// Overwrite
	if err := repo.Set("enabled", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !repo.GetBool("enabled", false) {
		t.Error("GetBool() = false after overwrite")
	}

	if err := repo.Set("enabled", "maybe"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if repo.GetBool("enabled", false) {
		t.Error("GetBool() should fall back to default for unparseable values")
	}
}
