// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/redinnova/innovanet/internal/auth"
)

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, r, "account list failed", err)
		return
	}
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, NewAccountView(a))
	}
	writeJSON(w, r, http.StatusOK, OK(views))
}

type createAccountRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"max=100"`
	EnrollmentCode string `json:"enrollment_code" validate:"required,max=64"`
	Phone          string `json:"phone" validate:"max=32"`
	Center         string `json:"center" validate:"max=200"`
	Network        string `json:"network" validate:"max=200"`
	Role           string `json:"role" validate:"required,oneof=admin general_coordinator subnet_coordinator manager guest"`
	ImageURL       string `json:"image_url" validate:"omitempty,url"`
	Password       string `json:"password"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), auth.AccountData{
		Email:          req.Email,
		Name:           req.Name,
		LastName:       req.LastName,
		EnrollmentCode: req.EnrollmentCode,
		Phone:          req.Phone,
		Center:         req.Center,
		Network:        req.Network,
		Role:           auth.Role(req.Role),
		ImageURL:       req.ImageURL,
		Password:       req.Password,
	})
	if err != nil {
		h.serviceError(w, r, "account create failed", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, OK(NewAccountView(account)))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	account, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, "account get failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, OK(NewAccountView(account)))
}

type updateAccountRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"last_name" validate:"omitempty,max=100"`
	EnrollmentCode *string `json:"enrollment_code" validate:"omitempty,min=1,max=64"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Center         *string `json:"center" validate:"omitempty,max=200"`
	Network        *string `json:"network" validate:"omitempty,max=200"`
	Role           *string `json:"role" validate:"omitempty,oneof=admin general_coordinator subnet_coordinator manager guest"`
	ImageURL       *string `json:"image_url" validate:"omitempty,url"`
}

func (req updateAccountRequest) profileUpdate() auth.ProfileUpdate {
	update := auth.ProfileUpdate{
		Name:           req.Name,
		LastName:       req.LastName,
		EnrollmentCode: req.EnrollmentCode,
		Phone:          req.Phone,
		Center:         req.Center,
		Network:        req.Network,
		ImageURL:       req.ImageURL,
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		update.Role = &role
	}
	return update
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req updateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.svc.UpdateProfile(r.Context(), id, req.profileUpdate())
	if err != nil {
		h.serviceError(w, r, "account update failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, OK(NewAccountView(account)))
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), id); err != nil {
		h.serviceError(w, r, "account delete failed", err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) adminResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	reset, err := h.svc.AdminResetPassword(r.Context(), id)
	if err != nil {
		h.fail(w, r, "admin password reset failed", err)
		return
	}
	if !reset {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	render.NoContent(w, r)
}
