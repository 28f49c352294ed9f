package storage

import "testing"

func TestStateGetSetDefault(t *testing.T) {
	s := New()
	if got := s.Get("missing", 42); got != 42 {
		t.Fatalf("expected default 42, got %v", got)
	}
	s.Set("k", "v")
	if got := s.Get("k", nil); got != "v" {
		t.Fatalf("expected v, got %v", got)
	}
}

func TestStateClean(t *testing.T) {
	s := New()
	s.Set("k", "v")
	s.Clean()
	if got := s.Get("k", nil); got != nil {
		t.Fatalf("expected nil after clean, got %v", got)
	}
}
