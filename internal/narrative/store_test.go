package narrative

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_GetOrCompute(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "2026-02-07", "09-15-1"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	calls := 0
	compute := func() ([]byte, error) {
		calls++
		return []byte(`{"n":1}`), nil
	}

	data, hit, err := s.GetOrCompute("hours.json", compute)
	if err != nil {
		t.Fatalf("first GetOrCompute: %v", err)
	}
	if hit {
		t.Error("first call must not be a cache hit")
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}

	again, hit, err := s.GetOrCompute("hours.json", compute)
	if err != nil {
		t.Fatalf("second GetOrCompute: %v", err)
	}
	if !hit {
		t.Error("second call must be a cache hit")
	}
	if calls != 1 {
		t.Errorf("compute re-invoked: calls = %d", calls)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("cached bytes differ: %q vs %q", data, again)
	}
}

func TestStore_WriteOnce(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// A pre-existing artifact wins over any later compute.
	if err := os.WriteFile(s.Path("daily.json"), []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, hit, err := s.GetOrCompute("daily.json", func() ([]byte, error) {
		return []byte("replacement"), nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if !hit || string(data) != "original" {
		t.Errorf("existing artifact overwritten: hit=%v data=%q", hit, data)
	}
	onDisk, _ := os.ReadFile(s.Path("daily.json"))
	if string(onDisk) != "original" {
		t.Errorf("file rewritten on disk: %q", onDisk)
	}
}

func TestStore_ComputeError(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	wantErr := errors.New("remote down")
	_, _, err = s.GetOrCompute("hours.json", func() ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected compute error passthrough, got %v", err)
	}
	if s.Has("hours.json") {
		t.Error("failed compute must not leave an artifact behind")
	}
}

func TestStore_Has(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if s.Has("hours.json") {
		t.Error("Has on empty store")
	}
	if _, _, err := s.GetOrCompute("hours.json", func() ([]byte, error) {
		return []byte("{}"), nil
	}); err != nil {
		t.Fatal(err)
	}
	if !s.Has("hours.json") {
		t.Error("Has after write")
	}
}
