package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Load(ctx, "ana"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load of a missing profile: got %v, wanted ErrNotFound", err)
	}
	if err := s.UpdateScore(ctx, "ana", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateScore of a missing profile: got %v, wanted ErrNotFound", err)
	}
	if err := s.SetBlocked(ctx, "ana", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetBlocked of a missing profile: got %v, wanted ErrNotFound", err)
	}

	p, err := LoadOrCreate(ctx, s, "ana", "")
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if p.Username != "ana" || p.Score != 0 {
		t.Errorf("LoadOrCreate created %+v", p)
	}

	if err := s.UpdateScore(ctx, "ana", -29000); err != nil {
		t.Fatalf("UpdateScore failed: %v", err)
	}
	p, err = LoadOrCreate(ctx, s, "ana", "Ana María")
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if p.Score != -29000 || p.Username != "ana" {
		t.Errorf("profile after UpdateScore: %+v", p)
	}

	p.IsBlocked = true
	p.Username = "Ana María"
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load(ctx, "ana")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *got != *p {
		t.Errorf("Load returned %+v, wanted %+v", got, p)
	}

	if err := s.SetBlocked(ctx, "ana", false); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}
	if got, _ := s.Load(ctx, "ana"); got.IsBlocked || got.Score != -29000 {
		t.Errorf("profile after SetBlocked(false): %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "mesa.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	testStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening keeps the data.
	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed on reopen: %v", err)
	}
	defer s.Close()
	p, err := s.Load(context.Background(), "ana")
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if p.Score != -29000 || p.IsBlocked {
		t.Errorf("profile after reopen: %+v", p)
	}
}
