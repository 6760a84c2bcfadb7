package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipstream/api/internal/authpw"
	"clipstream/api/internal/session"
	"clipstream/api/internal/store"
	"github.com/rs/zerolog/log"
)

type HTTPServer struct {
	service    *Service
	sessions   *session.Manager
	corsOrigin string
	webDir     string
}

func NewHTTPServer(service *Service, sessions *session.Manager, corsOrigin, webDir string) *HTTPServer {
	return &HTTPServer{service: service, sessions: sessions, corsOrigin: corsOrigin, webDir: webDir}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.service.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":     false,
				"status": "not_ready",
				"checks": map[string]any{"storage": map[string]any{"status": "error"}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"status": "ready",
			"checks": map[string]any{"storage": map[string]any{"status": "ok"}},
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		if err := s.sessions.Clear(w, r); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/me" {
		identity, ok := s.sessions.Read(r)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": identity.ID, "username": identity.Username})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/feed" {
		videos, err := s.service.Feed(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("feed failed")
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/feed/search" {
		videos, err := s.service.SearchFeed(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			log.Error().Err(err).Msg("feed search failed")
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "videos" {
		videoID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.handleVideo(w, r, videoID, parts[3])
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "account" {
		s.handleAccount(w, r, parts[2])
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleMarketing(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "not_found")
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	user, err := s.service.Auth().SignUp(r.Context(), body.Username, body.Password)
	if err != nil {
		status, code := mapError(err)
		writeError(w, status, code)
		return
	}
	if err := s.sessions.Issue(w, r, session.Identity{ID: user.ID, Username: user.Username}); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "username": user.Username})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	user, err := s.service.Auth().SignIn(r.Context(), body.Username, body.Password)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_login")
		return
	}
	if err != nil {
		status, code := mapError(err)
		writeError(w, status, code)
		return
	}
	if err := s.sessions.Issue(w, r, session.Identity{ID: user.ID, Username: user.Username}); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "username": user.Username})
}

func (s *HTTPServer) handleVideo(w http.ResponseWriter, r *http.Request, videoID int64, action string) {
	if action == "like" && r.Method == http.MethodPost {
		identity, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		count, err := s.service.LikeVideo(r.Context(), videoID, identity.ID)
		if err != nil {
			status, code := mapError(err)
			writeError(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": videoID, "likeCount": count})
		return
	}

	if action == "comments" && r.Method == http.MethodGet {
		comments, err := s.service.Comments(r.Context(), videoID)
		if err != nil {
			status, code := mapError(err)
			writeError(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": videoID, "comments": comments})
		return
	}

	if action == "comments" && r.Method == http.MethodPost {
		identity, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
		comment, err := s.service.AddComment(r.Context(), videoID, identity.Username, body.Text)
		if err != nil {
			status, code := mapError(err)
			writeError(w, status, code)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "comment": comment})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
}

func (s *HTTPServer) handleAccount(w http.ResponseWriter, r *http.Request, action string) {
	identity, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if action == "courses" {
		switch r.Method {
		case http.MethodGet:
			courses, err := s.service.Courses(r.Context(), identity.Username)
			if err != nil {
				status, code := mapError(err)
				writeError(w, status, code)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
			return
		case http.MethodPost, http.MethodDelete:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_body")
				return
			}
			var (
				courses []string
				err     error
				status  = http.StatusOK
			)
			if r.Method == http.MethodPost {
				courses, err = s.service.AddCourse(r.Context(), identity.Username, body.Name)
				status = http.StatusCreated
			} else {
				courses, err = s.service.RemoveCourse(r.Context(), identity.Username, body.Name)
			}
			if err != nil {
				errStatus, code := mapError(err)
				writeError(w, errStatus, code)
				return
			}
			writeJSON(w, status, map[string]any{"courses": courses})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	if action == "password" && r.Method == http.MethodPost {
		var body struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
		err := s.service.Auth().ChangePassword(r.Context(), identity.Username, body.OldPassword, body.NewPassword)
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_old_password")
			return
		}
		if err != nil {
			status, code := mapError(err)
			writeError(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "not_found")
}

// handleMarketing serves the static marketing page at the root path.
func (s *HTTPServer) handleMarketing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.webDir, "index.html"))
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	identity, ok := s.sessions.Read(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return session.Identity{}, false
	}
	return identity, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (int, string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code
	}
	switch {
	case errors.Is(err, authpw.ErrMissingFields):
		return http.StatusBadRequest, "missing_fields"
	case errors.Is(err, authpw.ErrPasswordTooShort):
		return http.StatusBadRequest, "too_short"
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_login"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	log.Error().Err(err).Msg("request failed")
	return http.StatusInternalServerError, "server_error"
}
