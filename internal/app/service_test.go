package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clipstream/api/internal/search"
	"clipstream/api/internal/session"
	"clipstream/api/internal/store"
)

// fakeStore is an in-memory dataStore for route tests.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]store.User
	videos  map[int64]store.Video
	order   []int64
	likes   map[int64]map[string]bool
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[string]store.User{},
		videos: map[int64]store.Video{},
		likes:  map[int64]map[string]bool{},
	}
}

func (f *fakeStore) GetUser(_ context.Context, username string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return store.ErrConflict
	}
	f.users[user.Username] = user
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, username, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[username] = user
	return nil
}

func (f *fakeStore) ListCourses(_ context.Context, username string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	if user.Courses == nil {
		return []string{}, nil
	}
	return user.Courses, nil
}

func (f *fakeStore) AddCourse(_ context.Context, username, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, c := range user.Courses {
		if c == name {
			return user.Courses, nil
		}
	}
	user.Courses = append(user.Courses, name)
	f.users[username] = user
	return user.Courses, nil
}

func (f *fakeStore) RemoveCourse(_ context.Context, username, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	kept := []string{}
	for _, c := range user.Courses {
		if c != name {
			kept = append(kept, c)
		}
	}
	user.Courses = kept
	f.users[username] = user
	return kept, nil
}

func (f *fakeStore) ListVideos(_ context.Context) ([]store.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	videos := make([]store.Video, 0, len(f.order))
	for _, id := range f.order {
		videos = append(videos, f.videos[id])
	}
	return videos, nil
}

func (f *fakeStore) GetVideo(_ context.Context, id int64) (store.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	video, ok := f.videos[id]
	if !ok {
		return store.Video{}, store.ErrNotFound
	}
	return video, nil
}

func (f *fakeStore) CountVideos(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.videos), nil
}

func (f *fakeStore) SeedVideos(_ context.Context, videos []store.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range videos {
		if _, ok := f.videos[v.ID]; ok {
			continue
		}
		f.videos[v.ID] = v
		f.order = append(f.order, v.ID)
		f.likes[v.ID] = map[string]bool{}
	}
	return nil
}

func (f *fakeStore) Like(_ context.Context, videoID int64, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	video, ok := f.videos[videoID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if !f.likes[videoID][userID] {
		f.likes[videoID][userID] = true
		video.LikeCount++
		f.videos[videoID] = video
	}
	return video.LikeCount, nil
}

func (f *fakeStore) AddComment(_ context.Context, videoID int64, comment store.Comment) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	video, ok := f.videos[videoID]
	if !ok {
		return store.Comment{}, store.ErrNotFound
	}
	video.Comments = append(video.Comments, comment)
	video.CommentCount = int64(len(video.Comments))
	f.videos[videoID] = video
	return comment, nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

func newTestServer(t *testing.T) (*HTTPServer, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	svc := New(fs, search.NewService(nil), nil)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	sessions := session.NewManager([]byte("test-secret"), time.Hour)
	return NewHTTPServer(svc, sessions, "*", t.TempDir()), fs
}

func doRequest(t *testing.T, server *HTTPServer, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

// signUp registers a user and returns the session cookies.
func signUp(t *testing.T, server *HTTPServer, username, password string) []*http.Cookie {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup",
		`{"username":"`+username+`","password":"`+password+`"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	if payload["error"] != code {
		t.Fatalf("expected error code %q, got %v", code, payload["error"])
	}
}
