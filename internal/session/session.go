package session

import (
	"errors"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned for lookups on an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrPageNotFound is returned for lookups on an unknown page id.
	ErrPageNotFound = errors.New("page not found")
	// ErrBusy is returned when a session is held by an in-progress operation.
	ErrBusy = errors.New("session busy")
)

// Status is the lifecycle state of a page.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Page is one document page. Original is immutable after creation; Enhanced
// holds the most recent successfully produced artifact, empty until one exists.
// Invariant: Status == StatusDone exactly when Enhanced != "".
type Page struct {
	ID       int    `json:"id"`
	Original string `json:"original"`
	Enhanced string `json:"enhanced,omitempty"`
	Status   Status `json:"status"`
	// Version increments on every mutation of this page; callers append it to
	// image URLs as a freshness token since the enhanced artifact is replaced
	// in place.
	Version int `json:"version"`
}

// Session is one document-processing context: ordered pages plus an optional
// template image. Page order is append-only.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"filename"`
	Pages     []Page    `json:"pages"`
	Template  string    `json:"template,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Touched   time.Time `json:"-"`

	dir string
}

// Dir returns the session's artifact directory.
func (s *Session) Dir() string { return s.dir }

// OriginalDir returns the directory holding source page images.
func (s *Session) OriginalDir() string { return filepath.Join(s.dir, "original") }

// EnhancedDir returns the directory holding enhanced page images.
func (s *Session) EnhancedDir() string { return filepath.Join(s.dir, "enhanced") }

// Page returns a copy of the page with the given id.
func (s *Session) Page(pageID int) (Page, bool) {
	for i := range s.Pages {
		if s.Pages[i].ID == pageID {
			return s.Pages[i], true
		}
	}
	return Page{}, false
}

// MaxPageID returns the highest assigned page id, 0 for an empty session.
func (s *Session) MaxPageID() int {
	max := 0
	for i := range s.Pages {
		if s.Pages[i].ID > max {
			max = s.Pages[i].ID
		}
	}
	return max
}

// PendingIDs returns the ids of pages not yet enhanced, in ascending order.
func (s *Session) PendingIDs() []int {
	var ids []int
	for i := range s.Pages {
		if s.Pages[i].Status == StatusPending {
			ids = append(ids, s.Pages[i].ID)
		}
	}
	return ids
}

// AllIDs returns every page id in canonical order.
func (s *Session) AllIDs() []int {
	ids := make([]int, 0, len(s.Pages))
	for i := range s.Pages {
		ids = append(ids, s.Pages[i].ID)
	}
	return ids
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Pages = make([]Page, len(s.Pages))
	copy(cp.Pages, s.Pages)
	return &cp
}
