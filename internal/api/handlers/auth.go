package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/api/httpx"
	"github.com/baharkarakas/prediction-backend/internal/auth"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
)

type AuthHandler struct {
	TM    *auth.TokenManager
	Users repo.Users
}

func NewAuthHandler(tm *auth.TokenManager, users repo.Users) *AuthHandler {
	return &AuthHandler{TM: tm, Users: users}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "email and password required", nil)
		return
	}

	u, err := h.Users.GetByEmail(r.Context(), req.Email)
	if err != nil || auth.VerifyPassword(req.Password, u.PasswordHash) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
		return
	}

	token, exp, err := h.TM.Generate(u.ID, u.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	})
}
