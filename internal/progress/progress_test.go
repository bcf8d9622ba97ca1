package progress

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "abc"); ok {
		t.Error("empty store should have no record")
	}

	start := time.Now()
	rec := Record{Op: "enhance_all", State: "running", Done: 2, Total: 5, Start: &start}
	if err := m.Set(ctx, "abc", rec); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := m.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Op != "enhance_all" || got.Done != 2 || got.Total != 5 {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryCancelMarks(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if c, _ := m.IsCancelled(ctx, "abc"); c {
		t.Error("should not be cancelled initially")
	}
	m.MarkCancel(ctx, "abc")
	if c, _ := m.IsCancelled(ctx, "abc"); !c {
		t.Error("should be cancelled after mark")
	}
	m.ClearCancel(ctx, "abc")
	if c, _ := m.IsCancelled(ctx, "abc"); c {
		t.Error("should be clear after ClearCancel")
	}
}
