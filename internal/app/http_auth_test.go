package app

import (
	"net/http"
	"testing"
)

func TestSignUpCreatesAccountAndSession(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup",
		`{"username":"Alice","password":"secret1"}`, nil)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	if payload["ok"] != true {
		t.Fatalf("expected ok=true, got %v", payload["ok"])
	}
	if payload["username"] != "alice" {
		t.Fatalf("expected canonical username alice, got %v", payload["username"])
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatalf("expected session cookie on signup")
	}
}

func TestSignUpDuplicateUsernameConflicts(t *testing.T) {
	server, _ := newTestServer(t)
	signUp(t, server, "alice", "secret1")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup",
		`{"username":"alice","password":"other12"}`, nil)
	assertErrorCode(t, rr, http.StatusConflict, "username_taken")
}

func TestSignUpDuplicateIsCaseInsensitive(t *testing.T) {
	server, _ := newTestServer(t)
	signUp(t, server, "alice", "secret1")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup",
		`{"username":"ALICE","password":"other12"}`, nil)
	assertErrorCode(t, rr, http.StatusConflict, "username_taken")
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup",
		`{"username":"alice","password":"abc"}`, nil)
	assertErrorCode(t, rr, http.StatusBadRequest, "too_short")
}

func TestSignUpRejectsMissingFields(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup",
		`{"username":"","password":""}`, nil)
	assertErrorCode(t, rr, http.StatusBadRequest, "missing_fields")
}

func TestLoginWrongPasswordIsRejected(t *testing.T) {
	server, _ := newTestServer(t)
	signUp(t, server, "alice", "secret1")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"wrong"}`, nil)
	assertErrorCode(t, rr, http.StatusUnauthorized, "invalid_login")
}

func TestLoginUnknownUserIsRejected(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/api/auth/login",
		`{"username":"nobody","password":"secret1"}`, nil)
	assertErrorCode(t, rr, http.StatusUnauthorized, "invalid_login")
}

func TestLoginSetsSessionCookie(t *testing.T) {
	server, _ := newTestServer(t)
	signUp(t, server, "alice", "secret1")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"secret1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatalf("expected session cookie on login")
	}

	me := doRequest(t, server, http.MethodGet, "/api/me", "", rr.Result().Cookies())
	payload := parseBody(t, me)
	if payload["username"] != "alice" {
		t.Fatalf("expected /api/me to return alice, got %v", payload)
	}
}

func TestMeAnonymousReturnsEmptyObject(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/me", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload := parseBody(t, rr); len(payload) != 0 {
		t.Fatalf("expected empty object, got %v", payload)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	server, _ := newTestServer(t)
	cookies := signUp(t, server, "alice", "secret1")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/logout", "", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	// the response cookie expires the session
	cleared := rr.Result().Cookies()
	me := doRequest(t, server, http.MethodGet, "/api/me", "", cleared)
	if payload := parseBody(t, me); len(payload) != 0 {
		t.Fatalf("expected anonymous after logout, got %v", payload)
	}
}

func TestTamperedCookieReadsAsAnonymous(t *testing.T) {
	server, _ := newTestServer(t)
	cookies := signUp(t, server, "alice", "secret1")

	cookies[0].Value = cookies[0].Value + "tamper"
	rr := doRequest(t, server, http.MethodPost, "/api/videos/1/like", "", cookies)
	assertErrorCode(t, rr, http.StatusUnauthorized, "unauthorized")
}
