package pages

import (
	"sync"
	"time"

	"github.com/sqlmerr/twotty/internal/models"
)

// ProfileView is everything a profile page shows. Author is the viewed
// account and Viewer the signed-in one; they are distinct values even when
// they describe the same user.
type ProfileView struct {
	Author     models.User
	Viewer     models.User
	Posts      []models.Post
	IsFollowed bool
}

// IsOwn reports whether the viewer is looking at their own profile.
func (v ProfileView) IsOwn() bool {
	return v.Viewer.ID != "" && v.Viewer.ID == v.Author.ID
}

func (v ProfileView) clone() ProfileView {
	v.Posts = append([]models.Post(nil), v.Posts...)
	if v.Author.Followers != nil {
		n := *v.Author.Followers
		v.Author.Followers = &n
	}
	if v.Author.Followings != nil {
		n := *v.Author.Followings
		v.Author.Followings = &n
	}
	return v
}

type viewEntry struct {
	latest    uint64
	committed bool
	view      ProfileView
	touched   time.Time
}

// ViewStore keeps the last profile view per session. Every load takes a
// generation number from Begin and may only commit while it is still the
// newest load of that session.
type ViewStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*viewEntry
}

func NewViewStore() *ViewStore {
	return &ViewStore{now: time.Now, entries: make(map[string]*viewEntry)}
}

func (s *ViewStore) entry(key string) *viewEntry {
	e, ok := s.entries[key]
	if !ok {
		e = &viewEntry{}
		s.entries[key] = e
	}
	e.touched = s.now()
	return e
}

// Begin starts a load for key and returns its generation.
func (s *ViewStore) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	e.latest++
	return e.latest
}

// Commit stores v when gen is still the newest generation of key.
func (s *ViewStore) Commit(key string, gen uint64, v ProfileView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	if gen != e.latest {
		return false
	}
	e.view = v.clone()
	e.committed = true
	return true
}

// Get returns a copy of the committed view of key.
func (s *ViewStore) Get(key string) (ProfileView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.committed {
		return ProfileView{}, false
	}
	e.touched = s.now()
	return e.view.clone(), true
}

// Update applies fn to the committed view of key when it still shows the
// author authorID, and returns the result.
func (s *ViewStore) Update(key, authorID string, fn func(v *ProfileView)) (ProfileView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.committed || e.view.Author.ID != authorID {
		return ProfileView{}, false
	}
	fn(&e.view)
	e.touched = s.now()
	return e.view.clone(), true
}

// Drop forgets everything about key.
func (s *ViewStore) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep drops sessions untouched for longer than maxAge.
func (s *ViewStore) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	n := 0
	for k, e := range s.entries {
		if e.touched.Before(cutoff) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
