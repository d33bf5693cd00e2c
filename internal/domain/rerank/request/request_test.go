package request

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/vecrank/internal/domain"
)

func TestNew_Valid(t *testing.T) {
	r, err := New("hello", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Text() != "hello" {
		t.Errorf("Text() = %q", r.Text())
	}
	if r.TopK() != 3 {
		t.Errorf("TopK() = %d, want 3", r.TopK())
	}
}

func TestNew_EmptyTextPassesThrough(t *testing.T) {
	r, err := New("", DefaultTopK, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Text() != "" {
		t.Errorf("Text() = %q, want empty", r.Text())
	}
}

func TestNew_InvalidTopK(t *testing.T) {
	tests := []struct {
		name    string
		topK    int
		maxTopK int
	}{
		{"zero", 0, 0},
		{"negative", -2, 0},
		{"above default max", MaxTopK + 1, 0},
		{"above custom max", 11, 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("q", tc.topK, tc.maxTopK)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestNew_BoundaryTopK(t *testing.T) {
	if _, err := New("q", 1, 0); err != nil {
		t.Errorf("top_k=1 should be valid: %v", err)
	}
	if _, err := New("q", 10, 10); err != nil {
		t.Errorf("top_k=max should be valid: %v", err)
	}
}
