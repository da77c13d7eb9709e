package state

import (
	"testing"

	"github.com/jamchain/jamd/types"
)

func record(pkg byte, deps ...byte) ReadyRecord {
	depSet := make(map[types.Hash]struct{}, len(deps))
	for _, d := range deps {
		depSet[h(d)] = struct{}{}
	}
	r := WorkReport{}
	r.Spec.Hash = h(pkg)
	return ReadyRecord{Report: r, Dependencies: depSet}
}

func TestQEmitsFreeRecords(t *testing.T) {
	emitted, remaining := Q([]ReadyRecord{record(1), record(2)})
	if len(emitted) != 2 || len(remaining) != 0 {
		t.Fatalf("emitted=%d remaining=%d", len(emitted), len(remaining))
	}
}

func TestQTopologicalOrder(t *testing.T) {
	// 3 depends on 2 depends on 1; all resolve transitively.
	emitted, remaining := Q([]ReadyRecord{record(3, 2), record(2, 1), record(1)})
	if len(remaining) != 0 {
		t.Fatalf("remaining = %d", len(remaining))
	}
	want := []byte{1, 2, 3}
	if len(emitted) != 3 {
		t.Fatalf("emitted = %d", len(emitted))
	}
	for i, w := range want {
		if emitted[i].Spec.Hash != h(w) {
			t.Fatalf("emitted[%d] = %s, want leaf %d", i, emitted[i].Spec.Hash, w)
		}
	}
}

func TestQUnsatisfiedStays(t *testing.T) {
	emitted, remaining := Q([]ReadyRecord{record(2, 99), record(1)})
	if len(emitted) != 1 || emitted[0].Spec.Hash != h(1) {
		t.Fatal("free record not emitted")
	}
	if len(remaining) != 1 || remaining[0].Report.Spec.Hash != h(2) {
		t.Fatal("blocked record dropped")
	}
}

func TestQCycleNeverEmits(t *testing.T) {
	emitted, remaining := Q([]ReadyRecord{record(1, 2), record(2, 1)})
	if len(emitted) != 0 || len(remaining) != 2 {
		t.Fatalf("cycle emitted %d records", len(emitted))
	}
}

func TestAccumulatedHistoryBound(t *testing.T) {
	hist := NewAccumulatedHistory(2)
	hist.Push([]types.Hash{h(1)})
	hist.Push([]types.Hash{h(2)})
	hist.Push([]types.Hash{h(3)})
	if len(hist.Epochs) != 2 {
		t.Fatalf("len = %d", len(hist.Epochs))
	}
	if hist.Contains(h(1)) {
		t.Fatal("expired hash still reported")
	}
	if !hist.Contains(h(3)) {
		t.Fatal("recent hash missing")
	}
}
