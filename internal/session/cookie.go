// Package session holds the signed-cookie session gate. Sessions live
// entirely in the cookie; the server keeps no session state.
package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const cookieName = "clipstream_session"

// Identity is what the cookie carries: the authenticated user.
type Identity struct {
	ID       string
	Username string
}

// Manager issues, reads, and clears the session cookie. The cookie is
// signed with the configured secret; a bad signature or an elapsed MaxAge
// both read back as anonymous.
type Manager struct {
	store *sessions.CookieStore
}

func NewManager(secret []byte, ttl time.Duration) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// keep securecookie's own expiry in step with the cookie's MaxAge
	store.MaxAge(int(ttl.Seconds()))
	return &Manager{store: store}
}

// Issue writes the session cookie for identity onto the response.
func (m *Manager) Issue(w http.ResponseWriter, r *http.Request, identity Identity) error {
	sess, _ := m.store.Get(r, cookieName)
	sess.Values["id"] = identity.ID
	sess.Values["username"] = identity.Username
	return sess.Save(r, w)
}

// Read returns the identity in the request's cookie, or false for
// anonymous callers (no cookie, bad signature, or expired).
func (m *Manager) Read(r *http.Request) (Identity, bool) {
	sess, err := m.store.Get(r, cookieName)
	if err != nil || sess.IsNew {
		return Identity{}, false
	}
	id, _ := sess.Values["id"].(string)
	username, _ := sess.Values["username"].(string)
	if id == "" || username == "" {
		return Identity{}, false
	}
	return Identity{ID: id, Username: username}, true
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, cookieName)
	sess.Options.MaxAge = -1
	sess.Values = map[interface{}]interface{}{}
	return sess.Save(r, w)
}
