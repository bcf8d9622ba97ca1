package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create("deck.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(s.ID) != 8 {
		t.Errorf("session id %q, want 8 chars", s.ID)
	}
	for _, dir := range []string{s.OriginalDir(), s.EnhancedDir()} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("missing artifact dir %s: %v", dir, err)
		}
	}

	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "deck.pdf" {
		t.Errorf("name = %q", got.Name)
	}

	if _, err := r.Get("nope1234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown = %v, want ErrNotFound", err)
	}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")

	first, err := r.Append(s.ID, []string{"a.png", "b.png", "c.png"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	for i, p := range first {
		if p.ID != i+1 {
			t.Errorf("page id = %d, want %d", p.ID, i+1)
		}
		if p.Status != StatusPending || p.Enhanced != "" {
			t.Errorf("appended page should be pending with no enhanced image: %+v", p)
		}
		if p.Version != 1 {
			t.Errorf("new page version = %d, want 1", p.Version)
		}
	}

	second, _ := r.Append(s.ID, []string{"d.png"})
	if second[0].ID != 4 {
		t.Errorf("continued id = %d, want 4", second[0].ID)
	}
}

func TestAppendGeneratedBornDone(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")
	r.Append(s.ID, []string{"a.png"})

	pages, err := r.AppendGenerated(s.ID, []string{"gen.png"})
	if err != nil {
		t.Fatalf("AppendGenerated: %v", err)
	}
	p := pages[0]
	if p.ID != 2 || p.Status != StatusDone || p.Enhanced != "gen.png" || p.Original != "gen.png" {
		t.Errorf("generated page: %+v", p)
	}
}

func TestMutatePageBumpsVersion(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")
	r.Append(s.ID, []string{"a.png"})

	p, err := r.MutatePage(s.ID, 1, func(pg *Page) {
		pg.Enhanced = "out.png"
		pg.Status = StatusDone
	})
	if err != nil {
		t.Fatalf("MutatePage: %v", err)
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}
	if p.Status != StatusDone || p.Enhanced != "out.png" {
		t.Errorf("mutation not applied: %+v", p)
	}

	if _, err := r.MutatePage(s.ID, 99, func(*Page) {}); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("unknown page = %v, want ErrPageNotFound", err)
	}
}

func TestAcquireBusy(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")

	release, err := r.Acquire(s.ID)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := r.Acquire(s.ID); !errors.Is(err, ErrBusy) {
		t.Errorf("second Acquire = %v, want ErrBusy", err)
	}
	release()
	release2, err := r.Acquire(s.ID)
	if err != nil {
		t.Errorf("Acquire after release: %v", err)
	}
	release2()

	if _, err := r.Acquire("nope1234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Acquire unknown = %v, want ErrNotFound", err)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")
	dir := s.Dir()

	if err := r.Destroy(s.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("session dir should be removed")
	}
	if err := r.Destroy(s.ID); err != nil {
		t.Errorf("second Destroy should succeed, got %v", err)
	}
	if err := r.Destroy("neverwas"); err != nil {
		t.Errorf("Destroy unknown should succeed, got %v", err)
	}
}

func TestPendingIDs(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")
	r.Append(s.ID, []string{"a.png", "b.png", "c.png"})
	r.MutatePage(s.ID, 2, func(pg *Page) {
		pg.Enhanced = "b_out.png"
		pg.Status = StatusDone
	})

	got, _ := r.Get(s.ID)
	ids := got.PendingIDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("PendingIDs = %v, want [1 3]", ids)
	}
}

func TestSetAndClearTemplate(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("deck.pdf")

	old := filepath.Join(s.Dir(), "template_old.png")
	os.WriteFile(old, []byte("x"), 0o644)
	if err := r.SetTemplate(s.ID, old); err != nil {
		t.Fatalf("SetTemplate: %v", err)
	}

	// Replacing the template removes the previous artifact.
	next := filepath.Join(s.Dir(), "template_new.png")
	os.WriteFile(next, []byte("y"), 0o644)
	if err := r.SetTemplate(s.ID, next); err != nil {
		t.Fatalf("SetTemplate replace: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old template artifact should be removed")
	}

	if err := r.ClearTemplate(s.ID); err != nil {
		t.Fatalf("ClearTemplate: %v", err)
	}
	got, _ := r.Get(s.ID)
	if got.Template != "" {
		t.Error("template should be cleared")
	}
	// Clearing again still succeeds.
	if err := r.ClearTemplate(s.ID); err != nil {
		t.Errorf("second ClearTemplate: %v", err)
	}
}

func TestSweep(t *testing.T) {
	r := newTestRegistry(t)
	stale, _ := r.Create("old.pdf")
	fresh, _ := r.Create("new.pdf")

	r.mu.Lock()
	r.sessions[stale.ID].s.Touched = time.Now().Add(-48 * time.Hour)
	r.mu.Unlock()

	if n := r.Sweep(24 * time.Hour); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := r.Get(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Error("stale session should be gone")
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Error("fresh session should survive")
	}
}

func TestSweepSkipsBusySessions(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Create("busy.pdf")

	r.mu.Lock()
	r.sessions[s.ID].s.Touched = time.Now().Add(-48 * time.Hour)
	r.mu.Unlock()

	release, _ := r.Acquire(s.ID)
	defer release()
	if n := r.Sweep(24 * time.Hour); n != 0 {
		t.Errorf("Sweep removed %d, want 0 while op in flight", n)
	}
}
