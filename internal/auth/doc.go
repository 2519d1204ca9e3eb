// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package auth implements the credential and recovery rules of the
// InnovaNet account directory.
//
// # Accounts
//
// An Account is created with NewAccount (or through CredentialService) and
// starts on its enrollment code: the code is its first password and
// PasswordChangeRequired is set until the owner picks a real password.
//
// # Recovery codes
//
// A recovery code moves through two states:
//   - absent: Account.Recovery is nil
//   - pending: Account.Recovery holds the code hash, expiry and attempt count
//
// IssueRecoveryCode always starts a fresh pending code with zero attempts.
// The pending code is dropped when it is found expired, when the attempt
// limit is reached, or when ResetPassword succeeds.
//
// # Storage
//
// CredentialService depends on an AccountRepository and a Transactor. Every
// read-modify-write runs inside Transactor.InTransaction so concurrent
// requests for the same account are serialized. See the postgres and memory
// subpackages.
package auth
