// Package session keeps one landing page per visitor and adapts it to HTTP:
// notifications become flash messages and navigation becomes a pending
// redirect.
package session

import (
	"sync"
	"time"

	"github.com/example/scamshield/internal/landing"
)

// Level is the kind of a flash notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a flash message waiting to be shown.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Session is a visitor's state. It implements landing.Notifier and
// landing.Navigator for the pages it mounts.
type Session struct {
	ID string

	mount func(*Session) *landing.Page

	mu       sync.Mutex
	page     *landing.Page
	flashes  []Notification
	handoff  *landing.Handoff
	redirect string
	lastSeen time.Time
}

// Success queues a success flash.
func (s *Session) Success(message string) { s.push(LevelSuccess, message) }

// Error queues an error flash.
func (s *Session) Error(message string) { s.push(LevelError, message) }

// Info queues an info flash.
func (s *Session) Info(message string) { s.push(LevelInfo, message) }

func (s *Session) push(level Level, message string) {
	s.mu.Lock()
	s.flashes = append(s.flashes, Notification{Level: level, Message: message})
	s.mu.Unlock()
}

// Navigate records the handoff and a redirect to path for the next request.
func (s *Session) Navigate(path string, handoff landing.Handoff) {
	s.mu.Lock()
	s.handoff = &handoff
	s.redirect = path
	s.mu.Unlock()
}

// Mount returns the current page, mounting a fresh one if there is none or
// the previous one has navigated away.
func (s *Session) Mount() *landing.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil || s.page.State() >= landing.StateNavigated {
		s.page = s.mount(s)
	}
	return s.page
}

// View mounts the current page and returns its snapshot together with the
// path the visitor should be redirected to, if any. A page observed as
// navigated always yields a redirect, even when another request already
// consumed the pending one.
func (s *Session) View() (landing.Snapshot, string) {
	snapshot := s.Mount().Snapshot()
	if path, ok := s.TakeRedirect(); ok {
		return snapshot, path
	}
	if snapshot.State == landing.StateNavigated.String() {
		return snapshot, landing.AnalysisPath
	}
	return snapshot, ""
}

// Notifications drains the queued flashes.
func (s *Session) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// TakeRedirect returns and clears the pending navigation target.
func (s *Session) TakeRedirect() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.redirect
	s.redirect = ""
	return path, path != ""
}

// Handoff returns the payload of the last navigation.
func (s *Session) Handoff() (landing.Handoff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handoff == nil {
		return landing.Handoff{}, false
	}
	return *s.handoff, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) close() {
	s.mu.Lock()
	page := s.page
	s.page = nil
	s.mu.Unlock()
	if page != nil {
		page.Close()
	}
}
