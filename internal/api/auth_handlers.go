// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/redinnova/innovanet/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token                  string      `json:"token"`
	ExpiresAt              time.Time   `json:"expires_at"`
	PasswordChangeRequired bool        `json:"password_change_required"`
	Account                AccountView `json:"account"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	if account == nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expires, err := h.tokens.Issue(account)
	if err != nil {
		h.fail(w, r, "token issue failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, OK(LoginResponse{
		Token:                  token,
		ExpiresAt:              expires,
		PasswordChangeRequired: account.PasswordChangeRequired,
		Account:                NewAccountView(account),
	}))
}

type registerRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"max=100"`
	EnrollmentCode string `json:"enrollment_code" validate:"required,max=64"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"max=32"`
	Center         string `json:"center" validate:"max=200"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.svc.Register(r.Context(), auth.RegistrationData{
		Name:           req.Name,
		LastName:       req.LastName,
		EnrollmentCode: req.EnrollmentCode,
		Email:          req.Email,
		Phone:          req.Phone,
		Center:         req.Center,
	})
	if err != nil {
		h.serviceError(w, r, "registration failed", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, OK(NewAccountView(account)))
}

type recoveryRequest struct {
	Email string `json:"email" validate:"required"`
}

// requestRecovery answers 202 whether or not the email is known.
func (h *Handler) requestRecovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.svc.IssueRecoveryCode(r.Context(), req.Email); err != nil {
		h.fail(w, r, "recovery code issue failed", err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, Response{Status: StatusOK})
}

type verifyRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// VerifyResponse reports whether a recovery code was accepted.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

func (h *Handler) verifyRecovery(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	valid, err := h.svc.VerifyRecoveryCode(r.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(w, r, "recovery code verification failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, OK(VerifyResponse{Valid: valid}))
}

type resetRequest struct {
	Email       string `json:"email" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *Handler) resetWithRecovery(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.svc.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		h.serviceError(w, r, "password reset failed", err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid or expired recovery code")
		return
	}
	render.NoContent(w, r)
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	changed, err := h.svc.ChangePassword(r.Context(), account.ID, req.NewPassword)
	if err != nil {
		h.serviceError(w, r, "password change failed", err)
		return
	}
	if !changed {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	render.NoContent(w, r)
}
