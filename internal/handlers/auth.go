package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/otp"
	"github.com/onetarget777/kachra-site/internal/services"
	"github.com/onetarget777/kachra-site/internal/session"
)

// AuthHandler exposes signup, login, and password-reset flows.
type AuthHandler struct {
	auth     *services.AuthService
	sessions *session.Manager

	// devMode echoes OTP codes and generated passwords in responses so
	// the flows can be exercised without an email integration.
	devMode bool
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(auth *services.AuthService, sessions *session.Manager, devMode bool) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, devMode: devMode}
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, account *models.Account, ttl time.Duration) {
	token, err := h.sessions.Generate(account, ttl)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mint session token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if account.IsAdmin {
		http.SetCookie(w, &http.Cookie{
			Name:     session.AdminCookieName,
			Value:    "true",
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	account, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("Login failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ttl := session.DefaultTTL
	if req.RememberMe {
		ttl = session.RememberMeTTL
	}
	h.setSessionCookies(w, account, ttl)

	respondJSON(w, map[string]interface{}{
		"success": true,
		"userId":  account.ID,
		"isAdmin": account.IsAdmin,
	}, http.StatusOK)
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FullName == "" || req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, "All fields are required", http.StatusBadRequest)
		return
	}

	code, err := h.auth.Signup(r.Context(), req.FullName, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			respondError(w, "Username is already taken", http.StatusBadRequest)
		case errors.Is(err, services.ErrEmailTaken):
			respondError(w, "Email is already registered", http.StatusBadRequest)
		default:
			log.Error().Err(err).Msg("Signup failed")
			respondError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "OTP sent to your email",
	}
	if h.devMode {
		resp["otp"] = code
	}
	respondJSON(w, resp, http.StatusOK)
}

// VerifySignupOTP handles POST /auth/verify-signup-otp.
func (h *AuthHandler) VerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.OTP == "" {
		respondError(w, "Email and OTP are required", http.StatusBadRequest)
		return
	}

	account, err := h.auth.VerifySignup(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidOrExpired) {
			respondError(w, "Invalid or expired OTP", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Signup verification failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.setSessionCookies(w, account, session.DefaultTTL)

	respondJSON(w, map[string]interface{}{
		"success": true,
		"message": "Account created successfully",
		"userId":  account.ID,
	}, http.StatusOK)
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		respondError(w, "Email is required", http.StatusBadRequest)
		return
	}

	code, err := h.auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrEmailNotRegistered) {
			respondError(w, "Registered email not available", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("Forgot password failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "OTP sent to your email",
	}
	if h.devMode {
		resp["otp"] = code
	}
	respondJSON(w, resp, http.StatusOK)
}

// VerifyOTP handles POST /auth/verify-otp for password resets.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.OTP == "" {
		respondError(w, "Email and OTP are required", http.StatusBadRequest)
		return
	}

	newPassword, err := h.auth.VerifyReset(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidOrExpired) {
			respondError(w, "Invalid or expired OTP", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Password reset verification failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "Password reset successful",
	}
	if h.devMode {
		resp["newPassword"] = newPassword
	}
	respondJSON(w, resp, http.StatusOK)
}

// CheckUsername handles GET /auth/check-username.
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondError(w, "Username is required", http.StatusBadRequest)
		return
	}

	available, err := h.auth.UsernameAvailable(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Msg("Username check failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{"available": available}, http.StatusOK)
}
