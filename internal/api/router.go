// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package api serves the credential service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/pkg/errutil"
)

// CredentialService is the part of auth.CredentialService the API calls.
type CredentialService interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Account, error)
	Register(ctx context.Context, data auth.RegistrationData) (*auth.Account, error)
	IssueRecoveryCode(ctx context.Context, email string) (string, error)
	VerifyRecoveryCode(ctx context.Context, email, code string) (bool, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (bool, error)
	ChangePassword(ctx context.Context, id ulid.ULID, newPassword string) (bool, error)
	AdminResetPassword(ctx context.Context, id ulid.ULID) (bool, error)
	CreateAccount(ctx context.Context, data auth.AccountData) (*auth.Account, error)
	GetAccount(ctx context.Context, id ulid.ULID) (*auth.Account, error)
	ListAccounts(ctx context.Context) ([]*auth.Account, error)
	UpdateProfile(ctx context.Context, id ulid.ULID, update auth.ProfileUpdate) (*auth.Account, error)
	DeleteAccount(ctx context.Context, id ulid.ULID) error
}

var _ CredentialService = (*auth.CredentialService)(nil)

// Handler holds the dependencies shared by every route.
type Handler struct {
	svc      CredentialService
	tokens   *TokenMaker
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler creates a Handler. A nil logger falls back to slog.Default().
func NewHandler(svc CredentialService, tokens *TokenMaker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: svc, tokens: tokens, logger: logger, validate: v}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		instrument(h.logger),
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.login)
			r.Post("/register", h.register)
			r.Post("/recovery", h.requestRecovery)
			r.Post("/recovery/verify", h.verifyRecovery)
			r.Post("/recovery/reset", h.resetWithRecovery)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireToken)
			r.Post("/me/password", h.changePassword)

			r.Route("/accounts", func(r chi.Router) {
				r.Use(requireRole(auth.RoleAdmin))
				r.Get("/", h.listAccounts)
				r.Post("/", h.createAccount)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.getAccount)
					r.Patch("/", h.updateAccount)
					r.Delete("/", h.deleteAccount)
					r.Post("/reset-password", h.adminResetPassword)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// decode reads a JSON body into dst and validates it. It writes the error
// response and returns false if either step fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, r, http.StatusUnprocessableEntity, ValidationError(verrs))
			return false
		}
		h.fail(w, r, "request validation failed", err)
		return false
	}
	return true
}

// serviceError maps a credential service error to a response.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, r, http.StatusConflict, "email already registered")
		return
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_INVALID_ACCOUNT", "AUTH_EMPTY_PASSWORD":
			writeError(w, r, http.StatusBadRequest, oopsErr.Error())
			return
		}
	}
	h.fail(w, r, msg, err)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogError(r.Context(), h.logger.With("request_id", middleware.GetReqID(r.Context())), msg, err)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

// accountID reads the {id} path parameter. It writes a 400 and returns false
// if the parameter is not an account id.
func accountID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return ulid.ULID{}, false
	}
	return id, true
}

// AccountView is the public representation of an account. Credentials and
// recovery state are never exposed.
type AccountView struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	Name                   string    `json:"name"`
	LastName               string    `json:"last_name,omitempty"`
	EnrollmentCode         string    `json:"enrollment_code"`
	Phone                  string    `json:"phone,omitempty"`
	Center                 string    `json:"center,omitempty"`
	Network                string    `json:"network,omitempty"`
	Role                   string    `json:"role"`
	ImageURL               string    `json:"image_url,omitempty"`
	PasswordChangeRequired bool      `json:"password_change_required"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewAccountView builds the view of a.
func NewAccountView(a *auth.Account) AccountView {
	return AccountView{
		ID:                     a.ID.String(),
		Email:                  a.Email,
		Name:                   a.Name,
		LastName:               a.LastName,
		EnrollmentCode:         a.EnrollmentCode,
		Phone:                  a.Phone,
		Center:                 a.Center,
		Network:                a.Network,
		Role:                   string(a.Role),
		ImageURL:               a.ImageURL,
		PasswordChangeRequired: a.PasswordChangeRequired,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}
