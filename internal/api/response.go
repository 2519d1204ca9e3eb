// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

// Envelope status values.
const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Response is the JSON envelope of every API response with a body.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Response {
	return Response{Status: StatusOK, Data: data}
}

// Error returns an error envelope carrying msg.
func Error(msg string) Response {
	return Response{Status: StatusError, Error: msg}
}

// ValidationError turns validator failures into one error envelope whose
// message lists every failing field.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid url", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Error(strings.Join(msgs, ", "))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v Response) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, Error(msg))
}
