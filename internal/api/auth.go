package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tutorloop/matchflow-go/internal/identity"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	repo       identity.PartyRepo
	sessions   identity.SessionRepo
	auth       *identity.UserAuth
	sessionTTL time.Duration
}

// NewAuthHandler creates a new authentication handler. A non-positive
// ttl falls back to the identity default.
func NewAuthHandler(repo identity.PartyRepo, sessions identity.SessionRepo, auth *identity.UserAuth, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = identity.DefaultSessionTTL
	}
	return &AuthHandler{
		repo:       repo,
		sessions:   sessions,
		auth:       auth,
		sessionTTL: ttl,
	}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserInfo is the account shape returned by auth endpoints.
type UserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	PartyID     string `json:"party_id,omitempty"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      UserInfo `json:"user"`
}

func userInfo(u *identity.User) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		PartyID:     u.PartyID,
	}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "username and password required")
		return
	}

	ctx := r.Context()

	user, err := h.auth.Authenticate(ctx, h.repo, req.Username, req.Password)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	session, err := h.sessions.Create(ctx, user.ID, h.sessionTTL)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "session_error", "failed to create session")
		return
	}

	// Set cookie for browser clients
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		User:      userInfo(user),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	if token == "" {
		WriteUnauthorized(w, "no_session", "no session token provided")
		return
	}

	h.sessions.Delete(r.Context(), token)

	// Clear cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		MaxAge:   -1,
	})

	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// GetCurrentUser handles GET /api/auth/me.
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	if token == "" {
		WriteUnauthorized(w, "no_session", "no session token provided")
		return
	}

	ctx := r.Context()
	session, err := h.sessions.Get(ctx, token)
	if err != nil {
		WriteUnauthorized(w, "invalid_session", "session expired or invalid")
		return
	}

	user, err := h.repo.Get(ctx, session.UserID)
	if err != nil {
		WriteUnauthorized(w, "user_not_found", "user not found")
		return
	}

	WriteJSON(w, http.StatusOK, userInfo(user))
}

// ExtractToken gets the session token from the Authorization header or
// the session cookie.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}

	cookie, err := r.Cookie("session")
	if err == nil {
		return cookie.Value
	}

	return ""
}
