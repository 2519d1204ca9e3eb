// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package seed creates the initial accounts of a fresh installation.
package seed

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/internal/schema"
)

// File is a seed document.
type File struct {
	Accounts []Account `yaml:"accounts" json:"accounts" jsonschema:"minItems=1"`
}

// Account is one seeded account. Without a password the enrollment code is
// the first password and must be changed on first login.
type Account struct {
	Email          string `yaml:"email" json:"email" jsonschema:"minLength=3"`
	Name           string `yaml:"name" json:"name" jsonschema:"minLength=1"`
	LastName       string `yaml:"last_name,omitempty" json:"last_name,omitempty"`
	EnrollmentCode string `yaml:"enrollment_code" json:"enrollment_code" jsonschema:"minLength=1"`
	Phone          string `yaml:"phone,omitempty" json:"phone,omitempty"`
	Center         string `yaml:"center,omitempty" json:"center,omitempty"`
	Network        string `yaml:"network,omitempty" json:"network,omitempty"`
	Role           string `yaml:"role" json:"role" jsonschema:"enum=admin,enum=general_coordinator,enum=subnet_coordinator,enum=manager,enum=guest"`
	ImageURL       string `yaml:"image_url,omitempty" json:"image_url,omitempty"`
	Password       string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Default seeds the network administrator. It has no password: the first
// login uses the enrollment code and must be followed by a password change.
func Default() File {
	return File{Accounts: []Account{{
		Email:          "admin@redinnovacionfp.es",
		Name:           "Administrador",
		LastName:       "Sistema",
		EnrollmentCode: "ADMIN2024",
		Center:         "Administración Central",
		Network:        "Red Principal",
		Role:           string(auth.RoleAdmin),
	}}}
}

// Document is the schema of seed files.
var Document = schema.Document{
	ID:          "https://redinnovacionfp.es/schemas/seed.schema.json",
	Title:       "InnovaNet seed accounts",
	Description: "Accounts created by innovanet seed",
	Type:        &File{},
}

var validator = schema.NewValidator(Document)

// Load reads and validates the seed file at path. An empty path yields Default().
func Load(path string) (File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return File{}, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	return Parse(data)
}

// Parse validates and decodes a seed document.
func Parse(data []byte) (File, error) {
	if err := validator.Validate(data); err != nil {
		return File{}, oops.Code("SEED_INVALID").Wrap(err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, oops.Code("SEED_INVALID").Wrap(err)
	}
	return f, nil
}

// AccountCreator creates accounts. *auth.CredentialService implements it.
type AccountCreator interface {
	CreateAccount(ctx context.Context, data auth.AccountData) (*auth.Account, error)
}

// Result counts what Apply did.
type Result struct {
	Created int
	Skipped int
}

// Apply creates every account of f. Accounts whose email already exists are
// skipped, so running it twice is harmless. It stops at the first other error.
func Apply(ctx context.Context, creator AccountCreator, f File, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	for _, a := range f.Accounts {
		_, err := creator.CreateAccount(ctx, auth.AccountData{
			Email:          a.Email,
			Name:           a.Name,
			LastName:       a.LastName,
			EnrollmentCode: a.EnrollmentCode,
			Phone:          a.Phone,
			Center:         a.Center,
			Network:        a.Network,
			Role:           auth.Role(a.Role),
			ImageURL:       a.ImageURL,
			Password:       a.Password,
		})
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			res.Skipped++
			logger.InfoContext(ctx, "seed account exists, skipping", "email", a.Email)
		case err != nil:
			return res, oops.Code("SEED_FAILED").With("email", a.Email).Wrap(err)
		default:
			res.Created++
			logger.InfoContext(ctx, "seed account created", "email", a.Email, "role", a.Role)
		}
	}
	return res, nil
}
