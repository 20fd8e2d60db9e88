package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notepid/twilight_messenger/internal/user"
)

const (
	sessionCookieName = "sessionid"
	csrfCookieName    = "csrftoken"
	csrfHeaderName    = "X-CSRFToken"
)

type ctxKey int

const userKey ctxKey = iota

// sessionStore maps session tokens to user IDs. Sessions live in memory
// and are lost on restart.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]int
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]int)}
}

func (s *sessionStore) create(userID int) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = userID
	s.mu.Unlock()
	return token
}

func (s *sessionStore) lookup(token string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[token]
	return id, ok
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func currentUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(userKey).(*user.User)
	return u
}

// ensureCSRFCookie hands out a csrftoken cookie to any client that lacks one.
func (s *Server) ensureCSRFCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(csrfCookieName); err != nil || c.Value == "" {
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    strings.ReplaceAll(uuid.NewString(), "-", ""),
				Path:     "/",
				Secure:   s.secureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r)
	})
}

// csrfProtect rejects unsafe requests whose X-CSRFToken header does not
// match the csrftoken cookie.
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		c, err := r.Cookie(csrfCookieName)
		header := r.Header.Get(csrfHeaderName)
		if err != nil || c.Value == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(c.Value), []byte(header)) != 1 {
			http.Error(w, "CSRF verification failed.", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
			return
		}
		id, ok := s.sessions.lookup(c.Value)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
			return
		}
		u, err := s.users.GetByID(id)
		if err != nil {
			s.sessions.delete(c.Value)
			respondError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func (s *Server) startSession(w http.ResponseWriter, u *user.User) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.sessions.create(u.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "login required"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form.", http.StatusBadRequest)
		return
	}

	u, err := s.users.Authenticate(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		log.Info().Str("username", r.PostForm.Get("username")).Msg("login rejected")
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Username and/or Password are not valid.")
		return
	}

	s.startSession(w, u)
	respondJSON(w, http.StatusOK, map[string]string{"username": u.Username})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form.", http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if password != r.PostForm.Get("confirmation") {
		respondError(w, http.StatusBadRequest, "password_mismatch", "'Password' and 'Confirm Password' must match.")
		return
	}

	u, err := s.users.Create(username, password)
	if errors.Is(err, user.ErrUsernameTaken) {
		respondError(w, http.StatusBadRequest, "username_taken", "Username already exists.")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_registration", err.Error())
		return
	}

	log.Info().Str("username", u.Username).Msg("user registered")
	s.startSession(w, u)
	respondJSON(w, http.StatusCreated, map[string]string{"username": u.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", MaxAge: -1})
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
