// Package authn is the boundary to the platform authentication-challenge
// primitive. A challenge resolves to a three-way outcome: success, a
// recoverable failure (wrong finger, allow another attempt in the same prompt
// session), or a terminal failure (cancel, lockout, system error). Private-key
// operations elsewhere in the module demand a fresh successful challenge per
// call; nothing in this package caches a positive outcome.
package authn

import (
	"context"
	"errors"

	"github.com/go-biokey/biokey/pkg/biotypes"
)

var ErrChallengeUnavailable = errors.New("authn: no challenger configured")

// AuthOutcome is the result of one challenge attempt.
type AuthOutcome struct {
	Kind biotypes.AuthOutcomeKind
	Code biotypes.AuthCode // set for terminal failures
}

// AuthError is a terminal challenge failure surfaced to callers with a
// stable code.
type AuthError struct {
	Code biotypes.AuthCode
}

func NewAuthError(code biotypes.AuthCode) *AuthError {
	return &AuthError{Code: code}
}

func (e *AuthError) Error() string {
	return "authn: challenge failed (" + e.Code.String() + ")"
}

// Temporary reports whether a later challenge may succeed without user or
// system intervention beyond waiting.
func (e *AuthError) Temporary() bool {
	return e.Code == biotypes.AuthCodeLockoutTemporary || e.Code == biotypes.AuthCodeSystemCancel
}

// Challenger is the platform prompt primitive. Challenge blocks until the
// user produces one attempt outcome; it may be called repeatedly within one
// logical prompt session while outcomes remain recoverable.
type Challenger interface {
	Challenge(ctx context.Context, reason string) (AuthOutcome, error)
}

// ChallengerFunc adapts a function to the Challenger interface.
type ChallengerFunc func(ctx context.Context, reason string) (AuthOutcome, error)

func (f ChallengerFunc) Challenge(ctx context.Context, reason string) (AuthOutcome, error) {
	return f(ctx, reason)
}

// Authenticate drives a challenger until a terminal outcome: recoverable
// failures loop within the same session, success returns nil, terminal
// failures return an *AuthError. Context cancellation maps to a system-cancel
// terminal failure.
func Authenticate(ctx context.Context, c Challenger, reason string) error {
	if c == nil {
		return ErrChallengeUnavailable
	}

	for {
		if err := ctx.Err(); err != nil {
			return NewAuthError(biotypes.AuthCodeSystemCancel)
		}

		outcome, err := c.Challenge(ctx, reason)
		if err != nil {
			return err
		}

		switch outcome.Kind {
		case biotypes.AuthOutcomeSuccess:
			return nil
		case biotypes.AuthOutcomeRecoverableFailure:
			// Stay in the same prompt session and let the user retry.
			continue
		case biotypes.AuthOutcomeTerminalFailure:
			return NewAuthError(outcome.Code)
		default:
			return NewAuthError(biotypes.AuthCodeSystemError)
		}
	}
}
