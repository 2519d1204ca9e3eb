// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package notify delivers issued recovery codes to account owners.
package notify

import (
	"context"
	"log/slog"

	"github.com/redinnova/innovanet/internal/auth"
)

// LogNotifier records that a code was issued without revealing it. It stands
// in for real delivery in development.
type LogNotifier struct {
	logger *slog.Logger
}

var _ auth.RecoveryNotifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyRecoveryCode logs the delivery.
func (n *LogNotifier) NotifyRecoveryCode(ctx context.Context, msg auth.RecoveryMessage) error {
	n.logger.InfoContext(ctx, "recovery code issued",
		"account_id", msg.AccountID,
		"email", msg.Email,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}
