package main

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/jobs"
)

var testUI = fstest.MapFS{
	"index.html": {Data: []byte("<html>binder</html>")},
	"app.js":     {Data: []byte("console.log('hi')")},
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return setupRouter(config.Load(), jobs.NewStore(), testUI)
}

func get(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSPAFallback(t *testing.T) {
	r := testRouter(t)
	tests := []struct {
		path string
		want string
	}{
		{"/", "<html>binder</html>"},
		{"/app.js", "console.log('hi')"},
		{"/some/client/route", "<html>binder</html>"},
	}
	for _, tt := range tests {
		w := get(r, tt.path, nil)
		if w.Code != http.StatusOK || w.Body.String() != tt.want {
			t.Errorf("GET %s = %d %q", tt.path, w.Code, w.Body.String())
		}
	}
	if w := get(r, "/api/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown api path status %d", w.Code)
	}
}

func TestDisableUI(t *testing.T) {
	t.Setenv("DISABLE_UI", "true")
	r := testRouter(t)
	if w := get(r, "/", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
	if w := get(r, "/api/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := testRouter(t)
	w := get(r, "/api/health", map[string]string{"Origin": "https://elsewhere.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin %q", got)
	}
}

func TestProtectedRoutes(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	r := testRouter(t)

	if w := get(r, "/api/status/abc", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("without key: status %d", w.Code)
	}
	if w := get(r, "/api/status/abc", map[string]string{"X-API-Key": "secret"}); w.Code != http.StatusNotFound {
		t.Fatalf("with key: status %d", w.Code)
	}
	// public endpoints stay open
	if w := get(r, "/api/config", nil); w.Code != http.StatusOK {
		t.Fatalf("config status %d", w.Code)
	}
}

func TestLegacyUploadRoute(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestLanguageHeader(t *testing.T) {
	r := testRouter(t)
	w := get(r, "/api/health", map[string]string{"Accept-Language": "es-ES,es;q=0.9"})
	if got := w.Header().Get("Content-Language"); got != "es" {
		t.Fatalf("Content-Language %q", got)
	}
}

func TestEmbeddedUIHasLogin(t *testing.T) {
	index, err := fs.ReadFile(embeddedUI, "ui/index.html")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{`id="login-form"`, `id="logout"`, `id="upload-form"`} {
		if !strings.Contains(string(index), id) {
			t.Errorf("index.html missing %s", id)
		}
	}
	app, err := fs.ReadFile(embeddedUI, "ui/app.js")
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/api/auth/check", "/api/auth/login", "/api/auth/logout"} {
		if !strings.Contains(string(app), path) {
			t.Errorf("app.js never calls %s", path)
		}
	}
}

func authState(t *testing.T, r http.Handler, cookie *http.Cookie) map[string]bool {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var state map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("check body %q: %v", w.Body.String(), err)
	}
	return state
}

func TestWebLoginUnlocksAPI(t *testing.T) {
	t.Setenv("AUTH_USERNAME", "admin")
	t.Setenv("AUTH_PASSWORD", "hunter2")
	t.Setenv("API_KEY", "")
	t.Setenv("ALLOW_INSECURE", "true")
	r := testRouter(t)

	if s := authState(t, r, nil); !s["authRequired"] || s["authenticated"] || !s["webAuth"] {
		t.Fatalf("anonymous state %v", s)
	}
	if w := get(r, "/api/status/abc", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("login set no session cookie")
	}

	if s := authState(t, r, session); !s["authenticated"] {
		t.Fatalf("state after login %v", s)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/status/abc", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status with session %d, want 404 for unknown job", w.Code)
	}
}
