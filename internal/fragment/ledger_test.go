package fragment

import "testing"

func TestMergeLawCoalescesOverlapAndAdjacency(t *testing.T) {
	l := NewLedger()
	l.Add("a", 100, 0, 10)
	l.Add("a", 100, 10, 20) // adjacent
	l.Add("a", 100, 15, 25) // overlapping

	n := l.Find("a")
	if len(n.Parts) != 1 {
		t.Fatalf("expected one coalesced range, got %v", n.Parts)
	}
	if n.Parts[0] != (Range{Lo: 0, Hi: 25}) {
		t.Fatalf("unexpected coalesced range: %v", n.Parts[0])
	}
}

func TestFragmentCompleteness(t *testing.T) {
	l := NewLedger()
	l.Add("f", 50, 0, 20)
	if l.IsComplete("f") {
		t.Fatal("expected incomplete before full coverage")
	}
	l.Add("f", 50, 20, 50)
	if !l.IsComplete("f") {
		t.Fatal("expected complete after full coverage")
	}
}

func TestOverlapMergeOutOfOrder(t *testing.T) {
	l := NewLedger()
	l.Add("b", 30, 20, 30)
	l.Add("b", 30, 0, 10)
	l.Add("b", 30, 8, 22)

	n := l.Find("b")
	if len(n.Parts) != 1 || n.Parts[0] != (Range{Lo: 0, Hi: 30}) {
		t.Fatalf("expected single merged range covering whole entry, got %v", n.Parts)
	}
	if !l.IsComplete("b") {
		t.Fatal("expected complete")
	}
}

func TestRangeExists(t *testing.T) {
	l := NewLedger()
	l.Add("c", 100, 10, 20)
	if !l.RangeExists("c", 12, 18) {
		t.Fatal("expected sub-range to exist")
	}
	if l.RangeExists("c", 15, 25) {
		t.Fatal("did not expect partially-covered range to report exists")
	}
}

func TestUnknownNameIsIncomplete(t *testing.T) {
	l := NewLedger()
	if l.IsComplete("missing") {
		t.Fatal("expected unknown name to be incomplete")
	}
}

func TestDiscardRemovesTracking(t *testing.T) {
	l := NewLedger()
	l.Add("d", 10, 0, 10)
	l.Discard("d")
	if l.Find("d") != nil {
		t.Fatal("expected node removed after discard")
	}
}
