package jsonterm

import "testing"

func TestPathPositionsGapsRepeatedPaths(t *testing.T) {
	p := NewPathPositions()

	key := []byte("bands\x01band_name\x00")
	start1 := p.Reserve(key, 2) // "Elliot Smith" -> 2 tokens
	if start1 != 0 {
		t.Fatalf("expected first occurrence to start at 0, got %d", start1)
	}

	start2 := p.Reserve(key, 2) // "The Who" -> 2 tokens
	want := 2 + PositionGap
	if start2 != want {
		t.Fatalf("expected second occurrence to start at %d, got %d", want, start2)
	}

	other := []byte("bands\x01genre\x00")
	startOther := p.Reserve(other, 1)
	if startOther != 0 {
		t.Fatalf("expected a distinct path to start fresh at 0, got %d", startOther)
	}
}

func TestPathPositionsResetClearsState(t *testing.T) {
	p := NewPathPositions()
	key := []byte("x\x00")
	p.Reserve(key, 3)
	p.Reset()
	if start := p.Reserve(key, 1); start != 0 {
		t.Fatalf("expected reset tracker to restart at 0, got %d", start)
	}
}
