package services

import "github.com/pkg/errors"

// Sentinel errors surfaced to the HTTP layer. Provider and signature
// failures live in the paystack package; everything here is local state.
var (
	// ErrEventNotFound means no active event is configured
	ErrEventNotFound = errors.New("event not found")

	// ErrRegistrationNotFound means no registration matches the given ID or reference
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrReceiptNotFound means no payment exists for the given reference
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrDuplicateRegistration means the same guardian already registered this child
	ErrDuplicateRegistration = errors.New("this child has already been registered by this guardian for this event")

	// ErrInvalidReference means the supplied reference does not belong to the registration
	ErrInvalidReference = errors.New("invalid payment reference")

	// ErrAlreadyPaid rejects re-initialization of a completed payment
	ErrAlreadyPaid = errors.New("payment already completed")

	// ErrAmountMismatch means the provider-reported financials disagree with
	// the configured event. No credit is applied.
	ErrAmountMismatch = errors.New("payment amount mismatch")

	// ErrEventExists enforces the single-event rule at creation
	ErrEventExists = errors.New("an event already exists")

	// ErrAdminExists rejects duplicate admin accounts
	ErrAdminExists = errors.New("admin already exists")

	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAdminNotFound means no admin matches the given ID
	ErrAdminNotFound = errors.New("admin not found")
)
