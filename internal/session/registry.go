package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry maps session ids to sessions and owns their on-disk artifact
// directories. All page mutations go through the registry so the single-writer
// rule can be enforced with the per-session op slot.
type Registry struct {
	mu       sync.RWMutex
	root     string
	sessions map[string]*entry
}

type entry struct {
	s *Session
	// op is a capacity-1 slot: whoever holds the token is the session's single
	// writer. TryAcquire fails fast instead of queueing.
	op chan struct{}
}

// NewRegistry creates the registry and its root directory.
func NewRegistry(root string) (*Registry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Registry{root: root, sessions: make(map[string]*entry)}, nil
}

// Create allocates a new empty session with its artifact directories.
func (r *Registry) Create(name string) (*Session, error) {
	id := uuid.NewString()[:8]
	dir := filepath.Join(r.root, id)
	for _, sub := range []string{"original", "enhanced"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	now := time.Now()
	s := &Session{ID: id, Name: name, CreatedAt: now, Touched: now, dir: dir}

	r.mu.Lock()
	r.sessions[id] = &entry{s: s, op: make(chan struct{}, 1)}
	r.mu.Unlock()

	log.Info().Str("session_id", id).Str("filename", name).Msg("session created")
	return s.clone(), nil
}

// Get returns a snapshot of the session or ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.s.clone(), nil
}

// Destroy removes the session and releases all owned artifacts. Destroying an
// unknown id is not an error.
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.RemoveAll(e.s.dir); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	log.Info().Str("session_id", id).Msg("session destroyed")
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Acquire reserves the session's exclusive op slot. It returns a release
// function, or ErrBusy when another operation holds the session, or
// ErrNotFound for an unknown id.
func (r *Registry) Acquire(id string) (func(), error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	select {
	case e.op <- struct{}{}:
		return func() { <-e.op }, nil
	default:
		return nil, ErrBusy
	}
}

// Append adds pending pages for the given source images, assigning ids that
// continue the existing maximum. Returns the appended page records.
func (r *Registry) Append(id string, originals []string) ([]Page, error) {
	return r.append(id, originals, false)
}

// AppendGenerated adds pages whose source and enhanced artifact are the same
// generated image; such pages are born Done.
func (r *Registry) AppendGenerated(id string, images []string) ([]Page, error) {
	return r.append(id, images, true)
}

func (r *Registry) append(id string, images []string, generated bool) ([]Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := e.s.MaxPageID() + 1
	added := make([]Page, 0, len(images))
	for i, img := range images {
		p := Page{ID: next + i, Original: img, Status: StatusPending, Version: 1}
		if generated {
			p.Enhanced = img
			p.Status = StatusDone
		}
		e.s.Pages = append(e.s.Pages, p)
		added = append(added, p)
	}
	e.s.Touched = time.Now()
	return added, nil
}

// MutatePage applies one atomic mutation to a single page record and returns
// the updated copy. The mutation function must keep the status/enhanced
// invariant; Version is bumped here.
func (r *Registry) MutatePage(id string, pageID int, fn func(*Page)) (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Page{}, ErrNotFound
	}
	for i := range e.s.Pages {
		if e.s.Pages[i].ID == pageID {
			fn(&e.s.Pages[i])
			e.s.Pages[i].Version++
			e.s.Touched = time.Now()
			return e.s.Pages[i], nil
		}
	}
	return Page{}, ErrPageNotFound
}

// SetTemplate atomically replaces the session template with the given image
// path, removing the previous template artifact if any.
func (r *Registry) SetTemplate(id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	old := e.s.Template
	e.s.Template = path
	e.s.Touched = time.Now()
	if old != "" && old != path {
		_ = os.Remove(old)
	}
	return nil
}

// ClearTemplate removes the session template. Clearing an absent template
// still succeeds.
func (r *Registry) ClearTemplate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if e.s.Template != "" {
		_ = os.Remove(e.s.Template)
		e.s.Template = ""
	}
	e.s.Touched = time.Now()
	return nil
}

// Sweep destroys sessions idle for longer than maxAge and returns how many
// were removed. Idle expiry policy lives in the caller; this is the mechanism.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	var stale []string
	for id, e := range r.sessions {
		if e.s.Touched.Before(cutoff) {
			// skip sessions with an operation in flight
			select {
			case e.op <- struct{}{}:
				<-e.op
				stale = append(stale, id)
			default:
			}
		}
	}
	r.mu.Unlock()
	for _, id := range stale {
		if err := r.Destroy(id); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("sweep failed to destroy session")
		}
	}
	return len(stale)
}
