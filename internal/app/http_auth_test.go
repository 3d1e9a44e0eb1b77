package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sipiportal/api/internal/store"
)

func TestSignUpReturnsSessionContract(t *testing.T) {
	var createdUser store.User
	var assignedRole string
	fs := &fakeStore{
		createUserFn: func(_ context.Context, user store.User) error {
			createdUser = user
			return nil
		},
		assignRoleFn: func(_ context.Context, _, role string) error {
			assignedRole = role
			return nil
		},
	}
	svc := newTestService(testDeps{store: fs})
	server := NewHTTPServer(svc, "*")

	body := `{"name":"Avery","email":"Avery@Example.com","password":"Sup3rSecret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if token, _ := payload["accessToken"].(string); token == "" {
		t.Errorf("expected accessToken")
	}
	if refresh, _ := payload["refreshToken"].(string); refresh == "" {
		t.Errorf("expected refreshToken")
	}
	if createdUser.Email != "avery@example.com" {
		t.Errorf("expected lowercased email, got %q", createdUser.Email)
	}
	if assignedRole != "user" {
		t.Errorf("expected base role assignment, got %q", assignedRole)
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_1", Email: email}, nil
		},
	}
	svc := newTestService(testDeps{store: fs})
	server := NewHTTPServer(svc, "*")

	body := `{"name":"Avery","email":"avery@example.com","password":"Sup3rSecret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSignInWrongPasswordIs401(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("RightPassw0rd"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_1", Name: "Avery", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	svc := newTestService(testDeps{store: fs})
	server := NewHTTPServer(svc, "*")

	body := `{"email":"avery@example.com","password":"WrongPassw0rd"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if code, _ := payload["code"].(string); code != "INVALID_CREDENTIALS" {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", payload["code"])
	}
}

func TestSignInSuccessReturnsSession(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("RightPassw0rd"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_1", Name: "Avery", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	svc := newTestService(testDeps{store: fs})
	server := NewHTTPServer(svc, "*")

	body := `{"email":"avery@example.com","password":"RightPassw0rd"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if userName, _ := payload["userName"].(string); userName != "Avery" {
		t.Errorf("expected userName Avery, got %v", payload["userName"])
	}
	if _, hasRole := payload["role"]; hasRole {
		t.Errorf("session payload must not carry a role claim")
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	svc := newTestService(testDeps{})
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if authenticated, _ := payload["authenticated"].(bool); authenticated {
		t.Errorf("expected authenticated=false without a token")
	}
}

func TestRefreshEndpointRejectsUnknownToken(t *testing.T) {
	sessions := newFakeSessions()
	sessions.lookupFn = func(context.Context, string) (store.User, error) {
		return store.User{}, sql.ErrNoRows
	}
	svc := newTestService(testDeps{sessions: sessions})
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/session/refresh", bytes.NewBufferString(`{"refreshToken":"rft_bogus"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLogoutRevokesAccessAndRefresh(t *testing.T) {
	var revokedJTI string
	fs := &fakeStore{
		revokeAccessTokenFn: func(_ context.Context, jti string, _ time.Time) error {
			revokedJTI = jti
			return nil
		},
	}
	sessions := newFakeSessions()
	svc := newTestService(testDeps{store: fs, sessions: sessions})
	server := NewHTTPServer(svc, "*")

	session, err := svc.issueSession(context.Background(), store.User{ID: "usr_1", Name: "Avery"})
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}

	body := `{"refreshToken":"` + session.RefreshToken + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/session/logout", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if revokedJTI != session.JTI {
		t.Errorf("expected access token jti revoked, got %q", revokedJTI)
	}
	if len(sessions.revoked) != 1 {
		t.Errorf("expected refresh session revoked, got %d", len(sessions.revoked))
	}
}
