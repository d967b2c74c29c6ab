package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := NewAuth(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAuth(t)

	rec := postJSON(t, a.HandleRegister, RegisterReq{
		Username: "alice", Password: "hunter22", PasswordConfirm: "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register = %d: %s", rec.Code, rec.Body)
	}

	rec = postJSON(t, a.HandleLogin, LoginReq{Username: "alice", Password: "hunter22"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("identity cookie not set correctly: %+v", cookie)
	}
	name, err := a.ParseToken(cookie.Value)
	if err != nil || name != "alice" {
		t.Fatalf("cookie token resolves to %q, %v", name, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAuth(t)

	cases := []struct {
		name string
		req  RegisterReq
		code int
	}{
		{"short password", RegisterReq{Username: "a", Password: "ab", PasswordConfirm: "ab"}, http.StatusBadRequest},
		{"mismatch", RegisterReq{Username: "a", Password: "hunter22", PasswordConfirm: "hunter23"}, http.StatusBadRequest},
		{"empty username", RegisterReq{Password: "hunter22", PasswordConfirm: "hunter22"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := postJSON(t, a.HandleRegister, tc.req); rec.Code != tc.code {
				t.Fatalf("code = %d, want %d", rec.Code, tc.code)
			}
		})
	}

	ok := RegisterReq{Username: "bob", Password: "hunter22", PasswordConfirm: "hunter22"}
	if rec := postJSON(t, a.HandleRegister, ok); rec.Code != http.StatusOK {
		t.Fatalf("register = %d", rec.Code)
	}
	if rec := postJSON(t, a.HandleRegister, ok); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want conflict", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestAuth(t)
	postJSON(t, a.HandleRegister, RegisterReq{
		Username: "alice", Password: "hunter22", PasswordConfirm: "hunter22",
	})

	if rec := postJSON(t, a.HandleLogin, LoginReq{Username: "alice", Password: "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", rec.Code)
	}
	if rec := postJSON(t, a.HandleLogin, LoginReq{Username: "nobody", Password: "hunter22"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user = %d", rec.Code)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t)

	tok, err := a.SignToken("alice")
	if err != nil {
		t.Fatal(err)
	}
	name, err := a.ParseToken(tok)
	if err != nil || name != "alice" {
		t.Fatalf("ParseToken = %q, %v", name, err)
	}

	if _, err := a.ParseToken("garbage"); err == nil {
		t.Fatal("garbage token accepted")
	}
	if _, err := a.ParseToken(""); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestResolveCookieDegradesToGuest(t *testing.T) {
	a := newTestAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if name, guest := a.ResolveCookie(req); !guest || name != "" {
		t.Fatalf("no cookie: (%q, %v), want guest", name, guest)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	if _, guest := a.ResolveCookie(req); !guest {
		t.Fatal("forged cookie should degrade to guest")
	}

	tok, _ := a.SignToken("alice")
	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	if name, guest := a.ResolveCookie(req); guest || name != "alice" {
		t.Fatalf("valid cookie: (%q, %v), want alice", name, guest)
	}
}

func TestUsersPersistAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	a1, err := NewAuth(dir)
	if err != nil {
		t.Fatal(err)
	}
	postJSON(t, a1.HandleRegister, RegisterReq{
		Username: "alice", Password: "hunter22", PasswordConfirm: "hunter22",
	})

	a2, err := NewAuth(dir)
	if err != nil {
		t.Fatal(err)
	}
	if rec := postJSON(t, a2.HandleLogin, LoginReq{Username: "alice", Password: "hunter22"}); rec.Code != http.StatusOK {
		t.Fatalf("login after restart = %d", rec.Code)
	}

	// The signing key is stable too, so old cookies stay valid.
	tok, _ := a1.SignToken("alice")
	if name, err := a2.ParseToken(tok); err != nil || name != "alice" {
		t.Fatalf("token minted before restart: %q, %v", name, err)
	}
}
