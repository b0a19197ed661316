package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AuthCookieName is the session cookie TeamForge sets after a successful
// form login. A server is considered authenticated while its session
// contains this cookie.
const AuthCookieName = "sf_auth"

// ServerInfo describes one configured TeamForge server together with its
// session state. Identity fields are loaded once from configuration and
// never change during a run; the session is mutated by the authenticator
// and read by the fetchers, so access to it is guarded.
type ServerInfo struct {
	Id       string
	Name     string
	URL      string
	Username string
	Password string

	mu           sync.Mutex
	session      map[string]string
	cookieHeader string
}

// SetSession replaces the session cookies and recomputes the derived
// Cookie header. A nil map clears the session.
func (s *ServerInfo) SetSession(session map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.cookieHeader = joinCookies(session)
}

// ClearSession drops the session, marking the server unauthenticated.
func (s *ServerInfo) ClearSession() {
	s.SetSession(nil)
}

// IsAuthenticated reports whether the server holds a session containing
// the tracker's auth cookie.
func (s *ServerInfo) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.session[AuthCookieName]
	return ok
}

// CookieHeader returns the session cookies joined into a single HTTP
// Cookie header value, empty when unauthenticated.
func (s *ServerInfo) CookieHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookieHeader
}

func joinCookies(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, cookies[name]))
	}
	return strings.Join(parts, "; ")
}

func (s *ServerInfo) String() string {
	return fmt.Sprintf("ServerInfo{id=%s, name=%s, url=%s, username=%s}", s.Id, s.Name, s.URL, s.Username)
}

// ServerList holds the configured servers in configuration order.
type ServerList struct {
	Servers []*ServerInfo
}

// Find returns the first server whose base URL is a prefix of the given
// ticket URL, nil when no server matches. The list is small and ordered
// from configuration, so a linear scan is fine.
func (sl *ServerList) Find(ticketURL string) *ServerInfo {
	for _, server := range sl.Servers {
		if strings.HasPrefix(ticketURL, server.URL) {
			return server
		}
	}
	return nil
}
