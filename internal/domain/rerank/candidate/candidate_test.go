package candidate

import "testing"

func scoredList(sims ...float64) []Scored {
	out := make([]Scored, len(sims))
	for i, s := range sims {
		out[i] = NewScored(New(string(rune('a'+i)), "text", float64(i)/10), s)
	}
	return out
}

func TestBest_PicksMaximum(t *testing.T) {
	best, ok := Best(scoredList(0.2, 0.9, 0.5))
	if !ok {
		t.Fatal("expected a result")
	}
	if best.ID() != "b" {
		t.Errorf("expected b, got %s", best.ID())
	}
	if best.Similarity() != 0.9 {
		t.Errorf("expected 0.9, got %f", best.Similarity())
	}
}

func TestBest_TieKeepsFirst(t *testing.T) {
	best, _ := Best(scoredList(0.4, 0.7, 0.7, 0.1))
	if best.ID() != "b" {
		t.Errorf("tie should resolve to earliest candidate, got %s", best.ID())
	}
}

func TestBest_NegativeSimilarities(t *testing.T) {
	best, ok := Best(scoredList(-0.8, -0.3, -0.5))
	if !ok {
		t.Fatal("expected a result")
	}
	if best.ID() != "b" {
		t.Errorf("expected b, got %s", best.ID())
	}
}

func TestBest_Empty(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Error("expected ok=false for empty input")
	}
}

func TestBest_GreaterOrEqualThanAll(t *testing.T) {
	list := scoredList(0.11, 0.95, -0.2, 0.94, 0.95, 0.3)
	best, _ := Best(list)
	for _, s := range list {
		if s.Similarity() > best.Similarity() {
			t.Errorf("candidate %s has %f > best %f", s.ID(), s.Similarity(), best.Similarity())
		}
	}
}
