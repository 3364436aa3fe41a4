package store

import (
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	snap := Snapshot{
		Asset:       "123456789",
		Shares:      "10.5",
		AvgEntry:    "0.55",
		RealizedPnL: "1.23",
		UpdatedAt:   time.Now(),
	}

	if err := s.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil")
	}
	if loaded.Shares != snap.Shares {
		t.Errorf("Shares = %v, want %v", loaded.Shares, snap.Shares)
	}
	if loaded.RealizedPnL != snap.RealizedPnL {
		t.Errorf("RealizedPnL = %v, want %v", loaded.RealizedPnL, snap.RealizedPnL)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing snapshot, got %+v", loaded)
	}
}

func TestSaveOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.Save(Snapshot{Shares: "10"})
	_ = s.Save(Snapshot{Shares: "20"})

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Shares != "20" {
		t.Errorf("Shares = %v, want 20 (latest save)", loaded.Shares)
	}
}
