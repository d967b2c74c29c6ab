// Package auth issues and verifies the signed identity cookie the game
// gateway consumes. Accounts live in a JSON file; passwords are bcrypt
// hashed; tokens are HS256 JWTs carried in the "authToken" cookie.
package auth

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the cookie the websocket gateway reads during upgrade.
const CookieName = "authToken"

const tokenTTL = 24 * time.Hour

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type userStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*User
}

func newUserStore(path string) (*userStore, error) {
	us := &userStore{path: path, users: map[string]*User{}}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	if b, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(b, &us.users)
	}
	return us, nil
}

func (s *userStore) save() error {
	s.mu.RLock()
	b, _ := json.MarshalIndent(s.users, "", "  ")
	s.mu.RUnlock()
	return os.WriteFile(s.path, b, 0o600)
}

func (s *userStore) exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[strings.ToLower(username)]
	return ok
}

func (s *userStore) get(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	return u, ok
}

func (s *userStore) put(u *User) error {
	s.mu.Lock()
	s.users[strings.ToLower(u.Username)] = u
	s.mu.Unlock()
	return s.save()
}

// Auth verifies login credentials and signs/parses identity tokens.
type Auth struct {
	users  *userStore
	jwtKey []byte
	issuer string
}

// NewAuth loads the account store and signing key from dataDir, generating
// a key on first run.
func NewAuth(dataDir string) (*Auth, error) {
	users, err := newUserStore(filepath.Join(dataDir, "users.json"))
	if err != nil {
		return nil, err
	}
	keyPath := filepath.Join(dataDir, "jwt.key")
	key, err := os.ReadFile(keyPath)
	if err != nil || len(key) < 32 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
		_ = os.WriteFile(keyPath, key, 0o600)
	}
	return &Auth{users: users, jwtKey: key, issuer: "Spire"}, nil
}

type RegisterReq struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type RegisterResp struct {
	OK bool `json:"ok"`
}

func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 || req.Password != req.PasswordConfirm {
		http.Error(w, "invalid username or password mismatch / too short", http.StatusBadRequest)
		return
	}
	if a.users.exists(req.Username) {
		http.Error(w, "username already exists", http.StatusConflict)
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	u := &User{Username: req.Username, PasswordHash: string(hash), CreatedAt: time.Now()}
	if err := a.users.put(u); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(RegisterResp{OK: true})
}

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResp struct {
	Username string `json:"username"`
}

// HandleLogin checks credentials and sets the identity cookie.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	u, ok := a.users.get(req.Username)
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	signed, err := a.SignToken(u.Username)
	if err != nil {
		http.Error(w, "token signing failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  time.Now().Add(tokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	_ = json.NewEncoder(w).Encode(LoginResp{Username: u.Username})
}

// SignToken mints a token binding the given username.
func (a *Auth) SignToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"iss": a.issuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.jwtKey)
}

// ParseToken returns the username a token binds, or an error.
func (a *Auth) ParseToken(tok string) (string, error) {
	if tok == "" {
		return "", errors.New("missing token")
	}
	t, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		return a.jwtKey, nil
	})
	if err != nil || !t.Valid {
		return "", errors.New("invalid token")
	}
	if claims, ok := t.Claims.(jwt.MapClaims); ok {
		if sub, ok := claims["sub"].(string); ok {
			return sub, nil
		}
	}
	return "", errors.New("bad claims")
}

// ResolveCookie extracts an identity from a request's cookie. Verification
// failure or absence degrades to a guest rather than rejecting.
func (a *Auth) ResolveCookie(r *http.Request) (username string, isGuest bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", true
	}
	name, err := a.ParseToken(c.Value)
	if err != nil {
		return "", true
	}
	return name, false
}
